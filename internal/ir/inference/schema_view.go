package inference

import "gravix/internal/core"

// SchemaView is the narrow read-only view the inference engine needs onto
// the schema, so this package does not need to import internal/core's full
// mutation API. Implemented by *core.Manager.
type SchemaView interface {
	AllTypes() []*core.Type
	GetByID(id core.TypeID) *core.Type
	GetType(label string) *core.Type
}
