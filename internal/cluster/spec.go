// Package cluster manages connections to workflow clusters, their
// namespaces and the workers supervised in them.
package cluster

import (
	"net"
	"strconv"
	"strings"
	"time"

	"launchpad/internal/descriptor"
	"launchpad/internal/errdefs"
	"launchpad/internal/temporal"
)

const (
	DefaultNamespace = "default"
	DefaultHost      = "localhost"
	DefaultPort      = 7233
	DefaultGUIPort   = 8233
)

type NamespaceSpec struct {
	Name      string               `yaml:"name" json:"name"`
	Retention *descriptor.Duration `yaml:"retention,omitempty" json:"retention,omitempty"`
}

func (s NamespaceSpec) retention() time.Duration {
	if s.Retention == nil || s.Retention.Std() <= 0 {
		return temporal.DefaultRetention
	}
	return s.Retention.Std()
}

// Spec declares one cluster connection.
type Spec struct {
	Name             string          `yaml:"name" json:"name"`
	Host             string          `yaml:"host,omitempty" json:"host,omitempty"`
	Port             int             `yaml:"port,omitempty" json:"port,omitempty"`
	GUIPort          int             `yaml:"gui_port,omitempty" json:"gui_port,omitempty"`
	Namespaces       []NamespaceSpec `yaml:"namespaces,omitempty" json:"namespaces,omitempty"`
	DefaultNamespace string          `yaml:"default_namespace,omitempty" json:"default_namespace,omitempty"`
	Proxy            string          `yaml:"proxy,omitempty" json:"proxy,omitempty"`
	APIKey           string          `yaml:"api_key,omitempty" json:"-"`
}

// SpecFromMap decodes a cluster spec from a config payload.
func SpecFromMap(raw map[string]any) (Spec, error) {
	var spec Spec
	if err := descriptor.Decode(raw, &spec); err != nil {
		return Spec{}, err
	}
	if err := spec.validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// SpecsFromMaps decodes every entry, stopping at the first invalid one.
func SpecsFromMaps(raw []map[string]any) ([]Spec, error) {
	specs := make([]Spec, 0, len(raw))
	for _, entry := range raw {
		spec, err := SpecFromMap(entry)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (s Spec) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errdefs.Config("cluster spec missing `name` field")
	}
	if s.Port < 0 || s.Port > 65535 {
		return errdefs.Config("cluster %q: invalid port %d", s.Name, s.Port)
	}
	for _, namespace := range s.Namespaces {
		if strings.TrimSpace(namespace.Name) == "" {
			return errdefs.Config("cluster %q: namespace missing `name` field", s.Name)
		}
	}
	return nil
}

func (s Spec) host() string {
	if s.Host == "" {
		return DefaultHost
	}
	return s.Host
}

// Address is the frontend host:port.
func (s Spec) Address() string {
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(s.host(), strconv.Itoa(port))
}

// GUIAddress is the web UI host:port.
func (s Spec) GUIAddress() string {
	port := s.GUIPort
	if port == 0 {
		port = DefaultGUIPort
	}
	return net.JoinHostPort(s.host(), strconv.Itoa(port))
}

func (s Spec) endpoint() temporal.Endpoint {
	return temporal.Endpoint{
		HostPort: s.Address(),
		Proxy:    s.Proxy,
		APIKey:   s.APIKey,
	}
}
