package envspec

import "maps"

// =============================================================================
// Spec - Main Type
// =============================================================================

// Spec is the declarative description of one test environment: the project
// it belongs to, the services to run, and the mock endpoints they talk to.
type Spec struct {
	Project  string    `yaml:"project" json:"project"`
	Services []Service `yaml:"services" json:"services"`
	Mocks    []Mock    `yaml:"mocks,omitempty" json:"mocks,omitempty"`
}

// =============================================================================
// Service Types
// =============================================================================

// Service describes one container to run.
type Service struct {
	Name        string            `yaml:"name" json:"name"`
	Image       string            `yaml:"image" json:"image"`
	Ports       []PortSpec        `yaml:"ports,omitempty" json:"ports,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty" json:"volumes,omitempty"`
	Network     string            `yaml:"network,omitempty" json:"network,omitempty"`
	Healthcheck *Healthcheck      `yaml:"healthcheck,omitempty" json:"healthcheck,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// PortSpec binds one host port to a container port.
type PortSpec struct {
	Host      int    `yaml:"host" json:"host"`
	Container int    `yaml:"container" json:"container"`
	Protocol  string `yaml:"protocol,omitempty" json:"protocol,omitempty"` // tcp, udp
}

// Healthcheck carries the container health probe configuration. Durations
// stay as strings ("5s") and are parsed at the runtime boundary.
type Healthcheck struct {
	Test     []string `yaml:"test" json:"test"`
	Interval string   `yaml:"interval,omitempty" json:"interval,omitempty"`
	Timeout  string   `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retries  int      `yaml:"retries,omitempty" json:"retries,omitempty"`
}

// =============================================================================
// Mock Types
// =============================================================================

// Mock declares a mock endpoint the environment exposes on a host port.
type Mock struct {
	Name   string `yaml:"name" json:"name"`
	Port   int    `yaml:"port" json:"port"`
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// =============================================================================
// Copying
// =============================================================================

// Clone returns a deep copy. Port resolution rewrites ports on a copy so
// the caller's spec is never mutated.
func (s *Spec) Clone() *Spec {
	if s == nil {
		return nil
	}
	out := &Spec{Project: s.Project}
	if s.Services != nil {
		out.Services = make([]Service, len(s.Services))
		for i := range s.Services {
			out.Services[i] = s.Services[i].clone()
		}
	}
	out.Mocks = append([]Mock(nil), s.Mocks...)
	return out
}

func (svc Service) clone() Service {
	c := svc
	c.Ports = append([]PortSpec(nil), svc.Ports...)
	c.Environment = maps.Clone(svc.Environment)
	c.Volumes = append([]string(nil), svc.Volumes...)
	c.Labels = maps.Clone(svc.Labels)
	if svc.Healthcheck != nil {
		hc := *svc.Healthcheck
		hc.Test = append([]string(nil), svc.Healthcheck.Test...)
		c.Healthcheck = &hc
	}
	return c
}
