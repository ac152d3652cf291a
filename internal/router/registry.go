package router

import "github.com/gin-gonic/gin"

// Module registers a feature's routes on the shared API group.
type Module interface {
	Register(rg *gin.RouterGroup)
}

// ModuleFunc adapts a plain function to Module.
type ModuleFunc func(rg *gin.RouterGroup)

func (f ModuleFunc) Register(rg *gin.RouterGroup) { f(rg) }

// Registry collects modules and mounts them on one route group. Group
// middleware must be added before Mount; gin binds it at route registration.
type Registry struct {
	group   *gin.RouterGroup
	modules []Module
	mounted bool
}

func NewRegistry(engine *gin.Engine, basePath string) *Registry {
	return &Registry{group: engine.Group(basePath)}
}

func (r *Registry) Use(mw ...gin.HandlerFunc) *Registry {
	r.group.Use(mw...)
	return r
}

func (r *Registry) Add(mods ...Module) *Registry {
	r.modules = append(r.modules, mods...)
	return r
}

// Mount registers every added module once; later calls are no-ops.
func (r *Registry) Mount() {
	if r.mounted {
		return
	}
	r.mounted = true
	for _, m := range r.modules {
		m.Register(r.group)
	}
}
