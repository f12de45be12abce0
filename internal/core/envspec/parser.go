package envspec

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/argusai/argus/internal/core/domain"
)

// =============================================================================
// Parser Functions
// =============================================================================

// Parse parses the native environment spec YAML.
// This is a pure function - no I/O, no side effects.
func Parse(data []byte) (*Spec, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyInput
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks a spec for structural problems. It is called by both
// parsers and is exported for specs assembled in code.
func Validate(s *Spec) error {
	if s.Project == "" {
		return ErrNoProject
	}
	if !domain.IsSlug(s.Project) {
		return NewParseError("project", fmt.Sprintf("%q is not a valid project name", s.Project), ErrInvalidProject)
	}
	if len(s.Services) == 0 && len(s.Mocks) == 0 {
		return ErrNoServices
	}

	seen := make(map[string]bool)
	for i, svc := range s.Services {
		field := fmt.Sprintf("services[%d]", i)
		if svc.Name == "" {
			return NewParseError(field, "service must have a name", ErrServiceNoName)
		}
		field = "services." + svc.Name
		if seen[svc.Name] {
			return NewParseError(field, "name is declared twice", ErrDuplicateService)
		}
		seen[svc.Name] = true
		if svc.Image == "" {
			return NewParseError(field, "service must have an image", ErrServiceNoImage)
		}
		for j, p := range svc.Ports {
			if err := validatePort(fmt.Sprintf("%s.ports[%d]", field, j), p); err != nil {
				return err
			}
		}
	}

	for i, m := range s.Mocks {
		field := fmt.Sprintf("mocks[%d]", i)
		if m.Name == "" {
			return NewParseError(field, "mock must have a name", ErrServiceNoName)
		}
		field = "mocks." + m.Name
		if seen[m.Name] {
			return NewParseError(field, "name is declared twice", ErrDuplicateService)
		}
		seen[m.Name] = true
		if m.Port < 1 || m.Port > 65535 {
			return NewParseError(field+".port", fmt.Sprintf("port %d is out of range", m.Port), ErrInvalidPort)
		}
	}

	return nil
}

func validatePort(field string, p PortSpec) error {
	if p.Host < 1 || p.Host > 65535 {
		return NewParseError(field, fmt.Sprintf("host port %d is out of range", p.Host), ErrInvalidPort)
	}
	if p.Container < 1 || p.Container > 65535 {
		return NewParseError(field, fmt.Sprintf("container port %d is out of range", p.Container), ErrInvalidPort)
	}
	switch p.Protocol {
	case "", "tcp", "udp":
		return nil
	}
	return NewParseError(field, fmt.Sprintf("unknown protocol %q", p.Protocol), ErrInvalidPort)
}

// =============================================================================
// Compose Translation
// =============================================================================

// ParseCompose translates a Docker Compose file into an environment spec,
// so existing compose files can drive a run directly. Only the subset the
// engine manages is carried over: images, published ports, environment,
// volumes, the first network, labels, and health checks.
func ParseCompose(yamlContent, project string) (*Spec, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	composeProject, err := loadCompose(yamlContent, project)
	if err != nil {
		return nil, err
	}

	spec := &Spec{
		Project:  project,
		Services: make([]Service, 0, len(composeProject.Services)),
	}
	for _, svc := range composeProject.Services {
		converted, err := convertComposeService(svc)
		if err != nil {
			return nil, err
		}
		spec.Services = append(spec.Services, converted)
	}

	// Keep declaration-independent output stable.
	slices.SortFunc(spec.Services, func(a, b Service) int {
		return strings.Compare(a.Name, b.Name)
	})

	if err := Validate(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// loadCompose loads a compose document using compose-go.
func loadCompose(yamlContent, project string) (*types.Project, error) {
	// Parse YAML into a map first so syntax errors surface cleanly.
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	loaded, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName(projectNameOrDefault(project), project != "")
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// In-memory input: nothing to resolve on disk.
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, NewParseError("", "circular dependency detected", ErrCircularDependency)
		}
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, NewParseError("", "service must have an image", ErrServiceNoImage)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}

	if len(loaded.Secrets) > 0 {
		return nil, NewParseError("secrets", "secrets are not supported", ErrUnsupportedFeature)
	}
	if len(loaded.Configs) > 0 {
		return nil, NewParseError("configs", "configs are not supported", ErrUnsupportedFeature)
	}

	return loaded, nil
}

func projectNameOrDefault(project string) string {
	if project == "" {
		return "argus-temp"
	}
	return project
}

// convertComposeService maps one compose-go service onto our Service type.
func convertComposeService(svc types.ServiceConfig) (Service, error) {
	service := Service{
		Name:        svc.Name,
		Image:       svc.Image,
		Environment: make(map[string]string),
	}

	if service.Image == "" {
		return Service{}, NewParseError("services."+svc.Name, "service must have an image", ErrServiceNoImage)
	}

	// Only host-published ports concern the engine; internal-only ports
	// never conflict on the host.
	for i, p := range svc.Ports {
		if p.Published == "" {
			continue
		}
		published, err := strconv.Atoi(p.Published)
		if err != nil || published < 1 {
			return Service{}, NewParseError(
				fmt.Sprintf("services.%s.ports[%d]", svc.Name, i),
				fmt.Sprintf("published port %q must be a single numeric port", p.Published),
				ErrInvalidPort,
			)
		}
		service.Ports = append(service.Ports, PortSpec{
			Host:      published,
			Container: int(p.Target),
			Protocol:  p.Protocol,
		})
	}

	for k, v := range svc.Environment {
		if v != nil {
			service.Environment[k] = *v
		}
	}

	for _, v := range svc.Volumes {
		mount := v.Source + ":" + v.Target
		if v.ReadOnly {
			mount += ":ro"
		}
		service.Volumes = append(service.Volumes, mount)
	}

	// A service may join several networks; the engine attaches one. Take
	// the lexically first for deterministic output.
	if len(svc.Networks) > 0 {
		names := make([]string, 0, len(svc.Networks))
		for name := range svc.Networks {
			names = append(names, name)
		}
		slices.Sort(names)
		service.Network = names[0]
	}

	if len(svc.Labels) > 0 {
		service.Labels = make(map[string]string, len(svc.Labels))
		for k, v := range svc.Labels {
			service.Labels[k] = v
		}
	}

	if hc := svc.HealthCheck; hc != nil && !hc.Disable && len(hc.Test) > 0 {
		check := &Healthcheck{Test: append([]string(nil), hc.Test...)}
		if hc.Interval != nil {
			check.Interval = hc.Interval.String()
		}
		if hc.Timeout != nil {
			check.Timeout = hc.Timeout.String()
		}
		if hc.Retries != nil {
			check.Retries = int(*hc.Retries)
		}
		service.Healthcheck = check
	}

	return service, nil
}
