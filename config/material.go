package config

import "fmt"

// Material types.
const (
	MaterialGit        = "GitMaterial"
	MaterialSvn        = "SvnMaterial"
	MaterialHg         = "HgMaterial"
	MaterialP4         = "P4Material"
	MaterialTfs        = "TfsMaterial"
	MaterialDependency = "DependencyMaterial"
	MaterialPackage    = "PackageMaterial"
	MaterialPluggable  = "PluggableSCMMaterial"
)

// Material is a source of revisions that triggers a pipeline.
type Material interface {
	Validatable
	Type() string
	// MaterialName is the name used to refer to the material in label
	// templates; it falls back to a type specific default.
	MaterialName() CaseInsensitiveString
}

// ScmMaterial holds the attributes shared by version control materials.
type ScmMaterial struct {
	errorHolder
	Name       CaseInsensitiveString
	Folder     string
	Filter     []string
	AutoUpdate bool
}

func (m *ScmMaterial) MaterialName() CaseInsensitiveString { return m.Name }

// Credentials is embedded by materials that authenticate to their server.
// Passwords are only ever held encrypted.
type Credentials struct {
	Username          string
	EncryptedPassword string
}

// SetPassword encrypts plain with ci. An empty password leaves the
// current one in place.
func (c *Credentials) SetPassword(ci Cipher, plain string) error {
	if plain == "" {
		return nil
	}
	if ci == nil {
		return fmt.Errorf("password: %w", ErrNoCipher)
	}
	enc, err := ci.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}
	c.EncryptedPassword = enc
	return nil
}

type GitMaterial struct {
	ScmMaterial
	URL             string
	Branch          string
	SubmoduleFolder string
}

func (*GitMaterial) Type() string { return MaterialGit }

type SvnMaterial struct {
	ScmMaterial
	Credentials
	URL            string
	CheckExternals bool
}

func (*SvnMaterial) Type() string { return MaterialSvn }

type HgMaterial struct {
	ScmMaterial
	URL string
}

func (*HgMaterial) Type() string { return MaterialHg }

type P4Material struct {
	ScmMaterial
	Credentials
	ServerAndPort string
	UseTickets    bool
	View          string
}

func (*P4Material) Type() string { return MaterialP4 }

type TfsMaterial struct {
	ScmMaterial
	Credentials
	URL         string
	Domain      string
	ProjectPath string
}

func (*TfsMaterial) Type() string { return MaterialTfs }

// DependencyMaterial triggers on the completion of an upstream stage.
type DependencyMaterial struct {
	errorHolder
	Name         CaseInsensitiveString
	PipelineName CaseInsensitiveString
	StageName    CaseInsensitiveString
}

func (*DependencyMaterial) Type() string { return MaterialDependency }

func (m *DependencyMaterial) MaterialName() CaseInsensitiveString {
	if m.Name.IsBlank() {
		return m.PipelineName
	}
	return m.Name
}

// PackageMaterial refers to a package defined in a package repository.
type PackageMaterial struct {
	errorHolder
	PackageID string
	// Name and AutoUpdate come from the package definition.
	Name       CaseInsensitiveString
	AutoUpdate bool
}

func (*PackageMaterial) Type() string { return MaterialPackage }

func (m *PackageMaterial) MaterialName() CaseInsensitiveString { return m.Name }

// PluggableSCMMaterial refers to an SCM provided by a plugin.
type PluggableSCMMaterial struct {
	errorHolder
	SCMID  string
	SCM    *SCMConfig
	Folder string
	Filter []string
}

func (*PluggableSCMMaterial) Type() string { return MaterialPluggable }

func (m *PluggableSCMMaterial) MaterialName() CaseInsensitiveString {
	if m.SCM == nil {
		return ""
	}
	return CaseInsensitiveString(m.SCM.Name)
}

// AutoUpdate mirrors the referenced SCM.
func (m *PluggableSCMMaterial) AutoUpdate() bool {
	return m.SCM == nil || m.SCM.AutoUpdate
}

// SCMConfig is a plugin SCM definition.
type SCMConfig struct {
	errorHolder
	ID            string
	Name          string
	AutoUpdate    bool
	Plugin        PluginConfiguration
	Configuration []*ConfigurationProperty
}

// scmMaterialFolder returns the destination folder of version control and
// plugin materials.
func scmMaterialFolder(m Material) (string, bool) {
	switch v := m.(type) {
	case *GitMaterial:
		return v.Folder, true
	case *SvnMaterial:
		return v.Folder, true
	case *HgMaterial:
		return v.Folder, true
	case *P4Material:
		return v.Folder, true
	case *TfsMaterial:
		return v.Folder, true
	case *PluggableSCMMaterial:
		return v.Folder, true
	}
	return "", false
}
