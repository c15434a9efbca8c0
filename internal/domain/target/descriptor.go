// Package target models the machine or account being provisioned.
//
// A Descriptor is assembled once per run from profile defaults,
// environment overrides, and an optional target file, then frozen.
// Steps read it and never write it, so two steps can never disagree
// about where they are running.
package target

import (
	"net/netip"
	"path/filepath"
	"sort"
)

// Mesh describes the host's place in the tailnet.
type Mesh struct {
	NodeName string   `yaml:"node_name" toml:"node_name"`
	AuthKey  Secret   `yaml:"auth_key" toml:"auth_key"`
	Routes   []string `yaml:"routes" toml:"routes"`
}

// Table describes one DynamoDB table the trading stack writes to.
// PartitionKey and SortKey are attribute names; all key attributes
// are strings.
type Table struct {
	Name         string `yaml:"name" toml:"name"`
	PartitionKey string `yaml:"partition_key" toml:"partition_key"`
	SortKey      string `yaml:"sort_key,omitempty" toml:"sort_key,omitempty"`
}

// Cloud describes the AWS account-level resources the platform needs.
type Cloud struct {
	Region          string  `yaml:"region" toml:"region"`
	Profile         string  `yaml:"profile" toml:"profile"`
	StackName       string  `yaml:"stack_name" toml:"stack_name"`
	AccessKeyID     string  `yaml:"access_key_id" toml:"access_key_id"`
	SecretAccessKey Secret  `yaml:"secret_access_key" toml:"secret_access_key"`
	Tables          []Table `yaml:"tables" toml:"tables"`
	DataBucket      string  `yaml:"data_bucket" toml:"data_bucket"`
	ExecutionRole   string  `yaml:"execution_role" toml:"execution_role"`
	SecurityGroup   string  `yaml:"security_group" toml:"security_group"`
	IngressPorts    []int   `yaml:"ingress_ports" toml:"ingress_ports"`
}

// Backend describes the application surface served from the host.
type Backend struct {
	Domain         string `yaml:"domain" toml:"domain"`
	Port           int    `yaml:"port" toml:"port"`
	ComposeProject string `yaml:"compose_project" toml:"compose_project"`
	DockerNetwork  string `yaml:"docker_network" toml:"docker_network"`
	DatabaseURL    Secret `yaml:"database_url" toml:"database_url"`
	RedisURL       Secret `yaml:"redis_url" toml:"redis_url"`
	JWTSecret      Secret `yaml:"jwt_secret" toml:"jwt_secret"`
}

// Descriptor is the immutable description of a provisioning target.
// Construct one with New or Loader.Load; accessors return copies so
// callers cannot mutate shared state.
type Descriptor struct {
	profile     string
	kind        Kind
	hostname    string
	user        string
	installRoot string
	packages    []string
	services    map[string]int
	mesh        Mesh
	cloud       Cloud
	backend     Backend
}

// New validates a Spec and freezes it into a Descriptor.
// All validation problems are reported together, not one at a time.
func New(profile string, spec Spec) (*Descriptor, error) {
	errs := NewErrorList()

	kind, err := ParseKind(spec.Kind)
	if err != nil {
		errs.AddField("kind", err.Error(), "Set kind to one of: pi, ec2, generic.")
	}

	if kind.IsHost() {
		if spec.Hostname == "" {
			errs.AddField("hostname", "host targets need a hostname", "Set hostname in the target file or GW_HOSTNAME.")
		}
		if spec.User == "" {
			errs.AddField("user", "host targets need a provisioning user", "Set user in the target file or PI_USER.")
		}
		if spec.InstallRoot == "" {
			errs.AddField("install_root", "host targets need an install root", "Set install_root in the target file or INSTALL_DIR.")
		} else if !filepath.IsAbs(spec.InstallRoot) {
			errs.AddField("install_root", "install root must be an absolute path", "Use an absolute path such as /opt/cryonith.")
		}
	}

	for name, port := range spec.Services {
		if name == "" {
			errs.AddField("services", "service name cannot be empty", "")
			continue
		}
		if port < 1 || port > 65535 {
			errs.AddField("services."+name, "port must be between 1 and 65535", "")
		}
	}
	if spec.Backend.Port != 0 && (spec.Backend.Port < 1 || spec.Backend.Port > 65535) {
		errs.AddField("backend.port", "port must be between 1 and 65535", "")
	}

	for _, route := range spec.Mesh.Routes {
		if _, err := netip.ParsePrefix(route); err != nil {
			errs.AddField("mesh.routes", "route "+route+" is not CIDR notation", "Use prefixes such as 192.168.4.0/24.")
		}
	}

	for _, table := range spec.Cloud.Tables {
		if table.Name == "" {
			errs.AddField("cloud.tables", "table name cannot be empty", "")
			continue
		}
		if table.PartitionKey == "" {
			errs.AddField("cloud.tables."+table.Name, "table needs a partition key", "")
		}
	}
	for _, port := range spec.Cloud.IngressPorts {
		if port < 1 || port > 65535 {
			errs.AddField("cloud.ingress_ports", "port must be between 1 and 65535", "")
		}
	}

	if err := errs.AsError(); err != nil {
		return nil, err
	}

	return &Descriptor{
		profile:     profile,
		kind:        kind,
		hostname:    spec.Hostname,
		user:        spec.User,
		installRoot: spec.InstallRoot,
		packages:    copyStrings(spec.Packages),
		services:    copyServices(spec.Services),
		mesh:        copyMesh(spec.Mesh),
		cloud:       copyCloud(spec.Cloud),
		backend:     spec.Backend,
	}, nil
}

// Profile returns the provisioning profile this descriptor was built for.
func (d *Descriptor) Profile() string {
	return d.profile
}

// Kind returns the target kind.
func (d *Descriptor) Kind() Kind {
	return d.kind
}

// Hostname returns the target hostname. Empty for account-level targets.
func (d *Descriptor) Hostname() string {
	return d.hostname
}

// User returns the user files and services run as.
func (d *Descriptor) User() string {
	return d.user
}

// InstallRoot returns the directory the platform is installed under.
func (d *Descriptor) InstallRoot() string {
	return d.installRoot
}

// Packages returns the system packages the target needs.
func (d *Descriptor) Packages() []string {
	return copyStrings(d.packages)
}

// Services returns the managed services and their ports.
func (d *Descriptor) Services() map[string]int {
	return copyServices(d.services)
}

// ServiceNames returns the managed service names in sorted order.
// Map iteration order would otherwise make step order nondeterministic.
func (d *Descriptor) ServiceNames() []string {
	names := make([]string, 0, len(d.services))
	for name := range d.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mesh returns the tailnet configuration.
func (d *Descriptor) Mesh() Mesh {
	return copyMesh(d.mesh)
}

// Cloud returns the AWS account configuration.
func (d *Descriptor) Cloud() Cloud {
	return copyCloud(d.cloud)
}

// Backend returns the application surface configuration.
func (d *Descriptor) Backend() Backend {
	return d.backend
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyServices(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyMesh(in Mesh) Mesh {
	out := in
	out.Routes = copyStrings(in.Routes)
	return out
}

func copyCloud(in Cloud) Cloud {
	out := in
	if in.Tables != nil {
		out.Tables = make([]Table, len(in.Tables))
		copy(out.Tables, in.Tables)
	}
	if in.IngressPorts != nil {
		out.IngressPorts = make([]int, len(in.IngressPorts))
		copy(out.IngressPorts, in.IngressPorts)
	}
	return out
}
