package target

// Spec is the mutable form of a Descriptor used during assembly.
// Loader starts from a profile's defaults, layers environment
// overrides and an optional target file on top, then freezes the
// result with New. The YAML/TOML tags are the target file format.
type Spec struct {
	Kind        string         `yaml:"kind" toml:"kind"`
	Hostname    string         `yaml:"hostname" toml:"hostname"`
	User        string         `yaml:"user" toml:"user"`
	InstallRoot string         `yaml:"install_root" toml:"install_root"`
	Packages    []string       `yaml:"packages" toml:"packages"`
	Services    map[string]int `yaml:"services" toml:"services"`
	Mesh        Mesh           `yaml:"mesh" toml:"mesh"`
	Cloud       Cloud          `yaml:"cloud" toml:"cloud"`
	Backend     Backend        `yaml:"backend" toml:"backend"`
}

// Provisioning profiles, one per provision subcommand.
const (
	ProfilePi      = "pi"
	ProfileAWS     = "aws"
	ProfileBackend = "backend"
)

// Profiles returns the known profile names in sorted order.
func Profiles() []string {
	return []string{ProfileAWS, ProfileBackend, ProfilePi}
}

// defaultTables is the table set the trading stack logs into.
// Key schemas match what the data logger reads and writes.
func defaultTables() []Table {
	return []Table{
		{Name: "CryonithTradeLogs", PartitionKey: "TradeId", SortKey: "Timestamp"},
		{Name: "CryonithStrategyMetrics", PartitionKey: "StrategyId", SortKey: "Timestamp"},
		{Name: "CryonithMarketSignals", PartitionKey: "SignalId", SortKey: "Timestamp"},
		{Name: "CryonithPerformance", PartitionKey: "MetricType", SortKey: "Date"},
	}
}

// profileSpec returns the built-in defaults for a profile.
func profileSpec(profile string) (Spec, error) {
	switch profile {
	case ProfilePi:
		return Spec{
			Kind:        string(KindPi),
			Hostname:    "cryonith-pi",
			User:        "pi",
			InstallRoot: "/opt/cryonith",
			Packages:    []string{"git", "curl", "nginx", "python3", "python3-pip", "python3-venv"},
			Services:    map[string]int{"cryonith-agent": 8000},
			Mesh: Mesh{
				NodeName: "cryonith-pi",
			},
			// The agent on the pi logs trades to DynamoDB, so it
			// needs the region even though account-level resources
			// are provisioned from the aws profile.
			Cloud: Cloud{
				Region: "us-east-1",
			},
			Backend: Backend{
				Domain: "cryonith-pi.local",
				Port:   8000,
			},
		}, nil
	case ProfileAWS:
		return Spec{
			Kind: string(KindGeneric),
			Cloud: Cloud{
				Region:        "us-east-1",
				StackName:     "cryonith-trading",
				Tables:        defaultTables(),
				DataBucket:    "cryonith-trading-data",
				ExecutionRole: "cryonith-execution-role",
				SecurityGroup: "cryonith-trading-sg",
				IngressPorts:  []int{22, 80, 443, 8000},
			},
		}, nil
	case ProfileBackend:
		return Spec{
			Kind:        string(KindEC2),
			Hostname:    "cryonith-backend",
			User:        "ubuntu",
			InstallRoot: "/opt/cryonith",
			Packages:    []string{"git", "curl", "docker.io", "docker-compose-plugin"},
			Services:    map[string]int{"api": 8000},
			Mesh: Mesh{
				NodeName: "cryonith-backend",
			},
			Cloud: Cloud{
				Region: "us-east-1",
			},
			Backend: Backend{
				Domain:         "api.cryonith.com",
				Port:           8000,
				ComposeProject: "cryonith",
				DockerNetwork:  "cryonith-net",
			},
		}, nil
	default:
		return Spec{}, NewProfileUnknownError(profile, Profiles())
	}
}

// merge overlays non-zero fields of the overlay spec onto the base.
// Lists and maps replace wholesale; a target file that names packages
// owns the whole package list.
func merge(base *Spec, overlay Spec) {
	if overlay.Kind != "" {
		base.Kind = overlay.Kind
	}
	if overlay.Hostname != "" {
		base.Hostname = overlay.Hostname
	}
	if overlay.User != "" {
		base.User = overlay.User
	}
	if overlay.InstallRoot != "" {
		base.InstallRoot = overlay.InstallRoot
	}
	if len(overlay.Packages) > 0 {
		base.Packages = overlay.Packages
	}
	if len(overlay.Services) > 0 {
		base.Services = overlay.Services
	}

	if overlay.Mesh.NodeName != "" {
		base.Mesh.NodeName = overlay.Mesh.NodeName
	}
	if !overlay.Mesh.AuthKey.IsZero() {
		base.Mesh.AuthKey = overlay.Mesh.AuthKey
	}
	if len(overlay.Mesh.Routes) > 0 {
		base.Mesh.Routes = overlay.Mesh.Routes
	}

	if overlay.Cloud.Region != "" {
		base.Cloud.Region = overlay.Cloud.Region
	}
	if overlay.Cloud.Profile != "" {
		base.Cloud.Profile = overlay.Cloud.Profile
	}
	if overlay.Cloud.StackName != "" {
		base.Cloud.StackName = overlay.Cloud.StackName
	}
	if overlay.Cloud.AccessKeyID != "" {
		base.Cloud.AccessKeyID = overlay.Cloud.AccessKeyID
	}
	if !overlay.Cloud.SecretAccessKey.IsZero() {
		base.Cloud.SecretAccessKey = overlay.Cloud.SecretAccessKey
	}
	if len(overlay.Cloud.Tables) > 0 {
		base.Cloud.Tables = overlay.Cloud.Tables
	}
	if overlay.Cloud.DataBucket != "" {
		base.Cloud.DataBucket = overlay.Cloud.DataBucket
	}
	if overlay.Cloud.ExecutionRole != "" {
		base.Cloud.ExecutionRole = overlay.Cloud.ExecutionRole
	}
	if overlay.Cloud.SecurityGroup != "" {
		base.Cloud.SecurityGroup = overlay.Cloud.SecurityGroup
	}
	if len(overlay.Cloud.IngressPorts) > 0 {
		base.Cloud.IngressPorts = overlay.Cloud.IngressPorts
	}

	if overlay.Backend.Domain != "" {
		base.Backend.Domain = overlay.Backend.Domain
	}
	if overlay.Backend.Port != 0 {
		base.Backend.Port = overlay.Backend.Port
	}
	if overlay.Backend.ComposeProject != "" {
		base.Backend.ComposeProject = overlay.Backend.ComposeProject
	}
	if overlay.Backend.DockerNetwork != "" {
		base.Backend.DockerNetwork = overlay.Backend.DockerNetwork
	}
	if !overlay.Backend.DatabaseURL.IsZero() {
		base.Backend.DatabaseURL = overlay.Backend.DatabaseURL
	}
	if !overlay.Backend.RedisURL.IsZero() {
		base.Backend.RedisURL = overlay.Backend.RedisURL
	}
	if !overlay.Backend.JWTSecret.IsZero() {
		base.Backend.JWTSecret = overlay.Backend.JWTSecret
	}
}
