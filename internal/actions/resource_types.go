package actions

import (
	"fmt"

	"github.com/jtarchie/station/internal/model"
)

type image struct {
	repository string
	tag        string
	privileged bool
}

// ResourceTypes resolves a resource type name to the image implementing it.
type ResourceTypes struct {
	images map[string]image
}

// NewResourceTypes registers the pipeline's custom resource types on top of
// the built-in concourse images.
func NewResourceTypes(types ...model.ResourceType) *ResourceTypes {
	rt := &ResourceTypes{images: make(map[string]image)}
	for _, t := range types {
		rt.Add(t.Name, t.Source)
		if t.Privileged {
			img := rt.images[t.Name]
			img.privileged = true
			rt.images[t.Name] = img
		}
	}
	return rt
}

// Add overrides the image of a resource type from its source
// (repository and optional tag).
func (rt *ResourceTypes) Add(name string, source map[string]interface{}) {
	tag := "latest"
	if t, ok := source["tag"]; ok && fmt.Sprint(t) != "" {
		tag = fmt.Sprint(t)
	}
	repository := ""
	if r, ok := source["repository"]; ok {
		repository = fmt.Sprint(r)
	}
	rt.images[name] = image{repository: repository, tag: tag}
}

// Repository returns the image reference for a resource type.
func (rt *ResourceTypes) Repository(name string) string {
	if img, ok := rt.images[name]; ok && img.repository != "" {
		return img.repository + ":" + img.tag
	}
	return fmt.Sprintf("concourse/%s-resource:latest", name)
}

// Privileged reports whether containers of this type run privileged.
func (rt *ResourceTypes) Privileged(name string) bool {
	return rt.images[name].privileged
}

// Custom reports whether the pipeline overrides the type.
func (rt *ResourceTypes) Custom(name string) bool {
	_, ok := rt.images[name]
	return ok
}
