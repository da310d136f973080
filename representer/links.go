package representer

import (
	"net/url"
	"strings"
)

// Documentation links.
const (
	PipelineConfigDoc = "http://api.go.cd/#pipeline_config"
	PipelineGroupsDoc = "http://api.go.cd/#pipeline_groups"
)

// LinkBuilder produces absolute hrefs for the resources it is rooted at.
type LinkBuilder struct {
	base string
}

// NewLinkBuilder roots links at base, e.g. "https://ci.example.com".
func NewLinkBuilder(base string) *LinkBuilder {
	return &LinkBuilder{base: strings.TrimRight(base, "/")}
}

// PipelineURL links to a single pipeline's configuration.
func (b *LinkBuilder) PipelineURL(name string) string {
	return b.root() + "/api/admin/pipelines/" + url.PathEscape(name)
}

// PipelineFindURL is the URI template for looking up a pipeline by name.
func (b *LinkBuilder) PipelineFindURL() string {
	return b.root() + "/api/admin/pipelines/:name"
}

// PipelineGroupsURL links to the pipeline group listing.
func (b *LinkBuilder) PipelineGroupsURL() string {
	return b.root() + "/api/admin/pipeline_groups"
}

func (b *LinkBuilder) root() string {
	if b == nil {
		return ""
	}
	return b.base
}

// Links renders a HAL _links object from rel/href pairs, keeping their order.
func Links(pairs ...string) *Document {
	d := NewDocument()
	for i := 0; i+1 < len(pairs); i += 2 {
		d.Set(pairs[i], NewDocument().Set("href", pairs[i+1]))
	}
	return d
}
