package source

import "fmt"

// Factory builds an Adapter from a decoded source_config blob. config is the
// raw map as stored in the catalog; validating and decoding it for the
// source's source_type_tag is the factory's job.
type Factory func(config map[string]any) (Adapter, error)

// Registry maps a source_type_tag to the Factory that constructs its Adapter. No
// reflection and no plugin loading: every adapter a deployment can use is compiled
// in and registered up front.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates tag with factory. Registering the same tag twice panics,
// since that can only happen from a programming mistake at startup, never from
// user-supplied configuration.
func (r *Registry) Register(tag string, factory Factory) {
	if _, exists := r.factories[tag]; exists {
		panic(fmt.Sprintf("source: factory already registered for tag %q", tag))
	}
	r.factories[tag] = factory
}

// New constructs the Adapter registered for tag, passing config through.
func (r *Registry) New(tag string, config map[string]any) (Adapter, error) {
	factory, ok := r.factories[tag]
	if !ok {
		return nil, fmt.Errorf("source: no adapter registered for source type %q", tag)
	}
	return factory(config)
}

// Tags returns every registered source_type_tag, for CLI help text and config
// validation error messages.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	return tags
}
