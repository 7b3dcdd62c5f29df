package registry

// InterfaceRef names an interface a module requires or optionally uses.
type InterfaceRef struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
}

// ModuleRef is a module entry inside an application descriptor.
type ModuleRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ModuleDescriptor carries the module-supplied metadata attached to an
// application, merged onto the matching module by id.
type ModuleDescriptor struct {
	ID       string                 `json:"id"`
	Requires []InterfaceRef         `json:"requires,omitempty"`
	Optional []InterfaceRef         `json:"optional,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Application is one entitled application with its UI module lists.
type Application struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	UIModules           []ModuleRef        `json:"uiModules,omitempty"`
	UIModuleDescriptors []ModuleDescriptor `json:"uiModuleDescriptors,omitempty"`
}

// EntitlementResponse is the gateway's entitlement listing shape.
type EntitlementResponse struct {
	ApplicationDescriptors []Application `json:"applicationDescriptors"`
	TotalRecords           int           `json:"totalRecords,omitempty"`
}

// EntitlementRecord is one flattened, descriptor-merged UI module the
// tenant is entitled to run.
type EntitlementRecord struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Version            string                 `json:"version,omitempty"`
	ApplicationID      string                 `json:"applicationId"`
	RequiredInterfaces []InterfaceRef         `json:"requiredInterfaces,omitempty"`
	OptionalInterfaces []InterfaceRef         `json:"optionalInterfaces,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// DiscoveryRecord is one physically-deployed module.
type DiscoveryRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// DiscoveryResponse is the discovery listing shape.
type DiscoveryResponse struct {
	Discovery    []DiscoveryRecord `json:"discovery"`
	TotalRecords int               `json:"totalRecords,omitempty"`
}

// ResolvedModule is the reconciled merge of an entitlement record with
// its discovered location.
type ResolvedModule struct {
	EntitlementRecord
	Location string `json:"location"`
}

// Resolution is the outcome of one entitlement/discovery reconciliation.
// It is returned explicitly to the caller; the durable cache exists for
// later reads, never as the hand-off mechanism between resolution and
// asset loading.
type Resolution struct {
	// SourceURL is the discovery endpoint the resolution ran against.
	SourceURL string `json:"sourceUrl"`

	// HostLocation is where the host application is deployed. The host is
	// identified by its reserved name and never appears in Remotes.
	HostLocation string `json:"hostLocation"`

	// Remotes is the reconciled remote-module list in entitlement order.
	Remotes []ResolvedModule `json:"remotes"`
}
