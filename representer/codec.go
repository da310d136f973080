package representer

import (
	"fmt"

	"github.com/GoCodeAlone/pipelineapi/config"
)

// Codec converts pipelines to and from their HAL+JSON documents.
type Codec struct {
	cipher  config.Cipher
	plugins config.PluginSecurity
}

// NewCodec returns a Codec. Both collaborators may be nil, in which case
// secure values cannot be encrypted and plugin properties are never secure.
func NewCodec(cipher config.Cipher, plugins config.PluginSecurity) *Codec {
	return &Codec{cipher: cipher, plugins: plugins}
}

func (c *Codec) env(links *LinkBuilder) *Env {
	return &Env{Cipher: c.cipher, Plugins: c.plugins, Links: links}
}

// Encode renders p without hypermedia links.
func (c *Codec) Encode(p *config.PipelineConfig) (*Document, error) {
	return pipelineRepresenter.Encode(p, c.env(nil))
}

// EncodeWithLinks renders p with _links rooted at links.
func (c *Codec) EncodeWithLinks(p *config.PipelineConfig, links *LinkBuilder) (*Document, error) {
	return pipelineRepresenter.Encode(p, c.env(links))
}

// EncodeGroup renders a pipeline group with its pipelines embedded.
func (c *Codec) EncodeGroup(g *config.PipelineGroup, links *LinkBuilder) (*Document, error) {
	return groupRepresenter.Encode(g, c.env(links))
}

// Decode builds a pipeline from d. Input that cannot be mapped onto the
// model yields an *UnprocessableEntityError.
func (c *Codec) Decode(d *Document) (*config.PipelineConfig, error) {
	p := newPipeline()
	if err := pipelineRepresenter.Decode(d, p, c.env(nil)); err != nil {
		return nil, err
	}
	return p, nil
}

// Marshal encodes p into the compact form stores persist.
func (c *Codec) Marshal(p *config.PipelineConfig) ([]byte, error) {
	d, err := c.Encode(p)
	if err != nil {
		return nil, err
	}
	// Errors are never persisted.
	return d.Without("errors").Canonical()
}

// Unmarshal is the inverse of Marshal.
func (c *Codec) Unmarshal(data []byte) (*config.PipelineConfig, error) {
	d := NewDocument()
	if err := d.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("parse pipeline document: %w", err)
	}
	return c.Decode(d)
}
