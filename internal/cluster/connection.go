package cluster

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.temporal.io/sdk/client"

	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
	internalotel "launchpad/internal/otel"
	"launchpad/internal/temporal"
)

// DialFunc opens a client on one namespace.
type DialFunc func(ctx context.Context, options temporal.DialOptions) (client.Client, error)

// AdminFunc builds the namespace admin of a connection from its default
// namespace client.
type AdminFunc func(c client.Client) temporal.NamespaceAdmin

type Options struct {
	Identity       string
	RPCTimeout     time.Duration
	DisableTracing bool
	Dial           DialFunc
	Admin          AdminFunc
	Meter          metric.Meter
	Logger         *logging.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.RPCTimeout <= 0 {
		o.RPCTimeout = temporal.DefaultRPCTimeout
	}
	if o.Dial == nil {
		o.Dial = temporal.Dial
	}
	if o.Admin == nil {
		logger := o.Logger
		timeout := o.RPCTimeout
		o.Admin = func(c client.Client) temporal.NamespaceAdmin {
			return temporal.NewServiceAdmin(c, timeout, logger)
		}
	}
	if o.Meter == nil {
		o.Meter = internalotel.Meter("launchpad/cluster")
	}
	return o
}

// Connection is one cluster endpoint with its namespaces and cached clients.
type Connection struct {
	name       string
	guiAddress string
	endpoint   temporal.Endpoint
	options    Options
	logger     *logging.Logger

	mu               sync.Mutex
	namespaces       map[string]*Namespace
	defaultNamespace string
	clients          map[string]client.Client
}

type ConnectionInfo struct {
	Name             string          `json:"name"`
	Address          string          `json:"address"`
	GUIAddress       string          `json:"gui_address"`
	Namespaces       []NamespaceInfo `json:"namespaces"`
	DefaultNamespace NamespaceInfo   `json:"default_namespace"`
}

// NewConnection creates the connection with its `default` namespace and
// registers every extra namespace on the cluster.
func NewConnection(ctx context.Context, spec Spec, options Options) (*Connection, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	options = options.withDefaults()
	c := &Connection{
		name:             spec.Name,
		guiAddress:       spec.GUIAddress(),
		endpoint:         spec.endpoint(),
		options:          options,
		logger:           options.Logger.Named("cluster").With(map[string]string{"connection": spec.Name}),
		namespaces:       make(map[string]*Namespace),
		defaultNamespace: DefaultNamespace,
		clients:          make(map[string]client.Client),
	}
	c.namespaces[DefaultNamespace] = newNamespace(c.name, DefaultNamespace, temporal.DefaultRetention, c.endpoint, c.logger)

	for _, namespace := range spec.Namespaces {
		if err := c.AddNamespace(ctx, namespace.Name, namespace.retention()); err != nil {
			c.closeClients()
			return nil, err
		}
	}
	if spec.DefaultNamespace != "" {
		if _, ok := c.namespaces[spec.DefaultNamespace]; !ok {
			c.closeClients()
			return nil, errdefs.NotFound("namespace %q in connection %q", spec.DefaultNamespace, spec.Name)
		}
		c.defaultNamespace = spec.DefaultNamespace
	}
	return c, nil
}

func (c *Connection) Name() string { return c.name }

func (c *Connection) Address() string { return c.endpoint.HostPort }

func (c *Connection) GUIAddress() string { return c.guiAddress }

// AddNamespace registers the namespace on the cluster and tracks it. An
// already registered remote namespace is accepted.
func (c *Connection) AddNamespace(ctx context.Context, name string, retention time.Duration) error {
	c.mu.Lock()
	_, exists := c.namespaces[name]
	c.mu.Unlock()
	if exists {
		return errdefs.AlreadyExists("namespace %q in connection %q", name, c.name)
	}
	if retention <= 0 {
		retention = temporal.DefaultRetention
	}

	admin, err := c.admin(ctx)
	if err != nil {
		return err
	}
	if err := admin.RegisterNamespace(ctx, name, retention); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.namespaces[name]; exists {
		return errdefs.AlreadyExists("namespace %q in connection %q", name, c.name)
	}
	c.namespaces[name] = newNamespace(c.name, name, retention, c.endpoint, c.logger)
	c.logger.Info("namespace added", map[string]string{"namespace": name})
	return nil
}

// RemoveNamespace kills the namespace workers then deletes it on the
// cluster. The default namespace cannot be removed.
func (c *Connection) RemoveNamespace(ctx context.Context, name string) error {
	c.mu.Lock()
	namespace, ok := c.namespaces[name]
	isDefault := name == c.defaultNamespace
	c.mu.Unlock()
	if !ok {
		return errdefs.NotFound("namespace %q in connection %q", name, c.name)
	}
	if isDefault {
		return errdefs.Config("namespace %q is the default of connection %q", name, c.name)
	}

	killErr := namespace.Kill()
	admin, err := c.admin(ctx)
	if err != nil {
		return errors.Join(killErr, err)
	}
	if err := admin.DeleteNamespace(ctx, name); err != nil {
		return errors.Join(killErr, err)
	}

	c.mu.Lock()
	delete(c.namespaces, name)
	cached := c.clients[name]
	delete(c.clients, name)
	c.mu.Unlock()
	if cached != nil {
		cached.Close()
	}
	c.logger.Info("namespace removed", map[string]string{"namespace": name})
	return killErr
}

// Namespace returns a tracked namespace; an empty name is the default.
func (c *Connection) Namespace(name string) (*Namespace, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		name = c.defaultNamespace
	}
	namespace, ok := c.namespaces[name]
	if !ok {
		return nil, errdefs.NotFound("namespace %q in connection %q", name, c.name)
	}
	return namespace, nil
}

func (c *Connection) DefaultNamespace() *Namespace {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.namespaces[c.defaultNamespace]
}

// Namespaces returns the tracked namespaces sorted by name.
func (c *Connection) Namespaces() []*Namespace {
	c.mu.Lock()
	defer c.mu.Unlock()
	namespaces := make([]*Namespace, 0, len(c.namespaces))
	for _, namespace := range c.namespaces {
		namespaces = append(namespaces, namespace)
	}
	sort.Slice(namespaces, func(i, j int) bool { return namespaces[i].name < namespaces[j].name })
	return namespaces
}

// Client dials the namespace or reuses its cached client.
func (c *Connection) Client(ctx context.Context, namespace string) (client.Client, error) {
	c.mu.Lock()
	if namespace == "" {
		namespace = c.defaultNamespace
	}
	if cached, ok := c.clients[namespace]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	dialed, err := c.options.Dial(ctx, temporal.DialOptions{
		Endpoint:       c.endpoint,
		Namespace:      namespace,
		Identity:       c.options.Identity,
		Logger:         c.options.Logger,
		DisableTracing: c.options.DisableTracing,
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.clients[namespace]; ok {
		dialed.Close()
		return cached, nil
	}
	c.clients[namespace] = dialed
	return dialed, nil
}

// admin uses the client of the `default` namespace, which always exists.
func (c *Connection) admin(ctx context.Context) (temporal.NamespaceAdmin, error) {
	defaultClient, err := c.Client(ctx, DefaultNamespace)
	if err != nil {
		return nil, err
	}
	return c.options.Admin(defaultClient), nil
}

// Close kills every worker and closes the cached clients.
func (c *Connection) Close() error {
	var errs []error
	for _, namespace := range c.Namespaces() {
		if err := namespace.Kill(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closeClients()
	return errors.Join(errs...)
}

func (c *Connection) closeClients() {
	c.mu.Lock()
	clients := c.clients
	c.clients = make(map[string]client.Client)
	c.mu.Unlock()
	for _, cached := range clients {
		cached.Close()
	}
}

func (c *Connection) Info() ConnectionInfo {
	namespaces := c.Namespaces()
	infos := make([]NamespaceInfo, 0, len(namespaces))
	for _, namespace := range namespaces {
		infos = append(infos, namespace.Info())
	}
	return ConnectionInfo{
		Name:             c.name,
		Address:          c.endpoint.HostPort,
		GUIAddress:       c.guiAddress,
		Namespaces:       infos,
		DefaultNamespace: c.DefaultNamespace().Info(),
	}
}
