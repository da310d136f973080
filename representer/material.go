package representer

import (
	"strings"

	"github.com/GoCodeAlone/pipelineapi/config"
)

var materialTypes = []string{
	config.MaterialGit,
	config.MaterialSvn,
	config.MaterialHg,
	config.MaterialP4,
	config.MaterialTfs,
	config.MaterialDependency,
	config.MaterialPackage,
	config.MaterialPluggable,
}

var pluggableSCMRenames = map[string]string{
	"folder": "destination",
	"scmId":  "ref",
}

var materialVariants = newMaterialVariants()

func newMaterialVariants() *VariantTable[config.Material] {
	t := NewVariantTable(
		func(m config.Material) string { return m.Type() },
		func(tag string) string {
			return "Invalid material type '" + tag + "'. It has to be one of '" + strings.Join(materialTypes, " ") + "'"
		},
		true)

	git := func(m *config.GitMaterial) *config.ScmMaterial { return &m.ScmMaterial }
	AddVariant(t, config.MaterialGit, func() *config.GitMaterial { return &config.GitMaterial{} },
		New(append(scmFields(git, func(m *config.GitMaterial) *string { return &m.URL }),
			String("branch",
				func(m *config.GitMaterial) string { return m.Branch },
				func(m *config.GitMaterial, s string) { m.Branch = s }),
			String("submodule_folder",
				func(m *config.GitMaterial) string { return m.SubmoduleFolder },
				func(m *config.GitMaterial, s string) { m.SubmoduleFolder = s }),
		)...), nil)

	svn := func(m *config.SvnMaterial) *config.ScmMaterial { return &m.ScmMaterial }
	svnFields := append(scmFields(svn, func(m *config.SvnMaterial) *string { return &m.URL }),
		Bool("check_externals",
			func(m *config.SvnMaterial) bool { return m.CheckExternals },
			func(m *config.SvnMaterial, b bool) { m.CheckExternals = b }))
	svnFields = append(svnFields, credentialFields(func(m *config.SvnMaterial) *config.Credentials { return &m.Credentials })...)
	AddVariant(t, config.MaterialSvn, func() *config.SvnMaterial { return &config.SvnMaterial{} }, New(svnFields...), nil)

	hg := func(m *config.HgMaterial) *config.ScmMaterial { return &m.ScmMaterial }
	AddVariant(t, config.MaterialHg, func() *config.HgMaterial { return &config.HgMaterial{} },
		New(scmFields(hg, func(m *config.HgMaterial) *string { return &m.URL })...), nil)

	p4 := func(m *config.P4Material) *config.ScmMaterial { return &m.ScmMaterial }
	p4Fields := append(scmFields(p4, nil),
		String("port",
			func(m *config.P4Material) string { return m.ServerAndPort },
			func(m *config.P4Material, s string) { m.ServerAndPort = s }),
		Bool("use_tickets",
			func(m *config.P4Material) bool { return m.UseTickets },
			func(m *config.P4Material, b bool) { m.UseTickets = b }),
		String("view",
			func(m *config.P4Material) string { return m.View },
			func(m *config.P4Material, s string) { m.View = s }))
	p4Fields = append(p4Fields, credentialFields(func(m *config.P4Material) *config.Credentials { return &m.Credentials })...)
	AddVariant(t, config.MaterialP4, func() *config.P4Material { return &config.P4Material{} }, New(p4Fields...), nil)

	tfs := func(m *config.TfsMaterial) *config.ScmMaterial { return &m.ScmMaterial }
	tfsFields := append(scmFields(tfs, func(m *config.TfsMaterial) *string { return &m.URL }),
		String("domain",
			func(m *config.TfsMaterial) string { return m.Domain },
			func(m *config.TfsMaterial, s string) { m.Domain = s }))
	tfsFields = append(tfsFields, credentialFields(func(m *config.TfsMaterial) *config.Credentials { return &m.Credentials })...)
	tfsFields = append(tfsFields, String("project_path",
		func(m *config.TfsMaterial) string { return m.ProjectPath },
		func(m *config.TfsMaterial, s string) { m.ProjectPath = s }))
	AddVariant(t, config.MaterialTfs, func() *config.TfsMaterial { return &config.TfsMaterial{} }, New(tfsFields...), nil)

	AddVariant(t, config.MaterialDependency, func() *config.DependencyMaterial { return &config.DependencyMaterial{} },
		New(
			Name("pipeline",
				func(m *config.DependencyMaterial) config.CaseInsensitiveString { return m.PipelineName },
				func(m *config.DependencyMaterial, n config.CaseInsensitiveString) { m.PipelineName = n }),
			Name("stage",
				func(m *config.DependencyMaterial) config.CaseInsensitiveString { return m.StageName },
				func(m *config.DependencyMaterial, n config.CaseInsensitiveString) { m.StageName = n }),
			Name("name",
				func(m *config.DependencyMaterial) config.CaseInsensitiveString { return m.MaterialName() },
				func(m *config.DependencyMaterial, n config.CaseInsensitiveString) { m.Name = n }),
			Bool("auto_update", func(*config.DependencyMaterial) bool { return true }, nil),
		), nil)

	AddVariant(t, config.MaterialPackage, func() *config.PackageMaterial { return &config.PackageMaterial{} },
		New(
			String("ref",
				func(m *config.PackageMaterial) string { return m.PackageID },
				func(m *config.PackageMaterial, s string) { m.PackageID = s }),
			Name("name", func(m *config.PackageMaterial) config.CaseInsensitiveString { return m.Name }, nil).ReadOnly(),
			Bool("auto_update", func(m *config.PackageMaterial) bool { return m.AutoUpdate }, nil).ReadOnly(),
		), nil)

	AddVariant(t, config.MaterialPluggable, func() *config.PluggableSCMMaterial { return &config.PluggableSCMMaterial{} },
		New(
			String("ref",
				func(m *config.PluggableSCMMaterial) string { return m.SCMID },
				func(m *config.PluggableSCMMaterial, s string) { m.SCMID = s }),
			Object("scm_config",
				func(m *config.PluggableSCMMaterial) (*config.SCMConfig, bool) { return m.SCM, m.SCM != nil },
				func(m *config.PluggableSCMMaterial, c *config.SCMConfig) { m.SCM = c },
				func() *config.SCMConfig { return &config.SCMConfig{} },
				scmConfigRepresenter).OmitEmpty(),
			filterField(func(m *config.PluggableSCMMaterial) *[]string { return &m.Filter }),
			NullableString("destination",
				func(m *config.PluggableSCMMaterial) string { return m.Folder },
				func(m *config.PluggableSCMMaterial, s string) { m.Folder = s }),
			Name("name", (*config.PluggableSCMMaterial).MaterialName, nil).ReadOnly().NullWhenEmpty(),
			Bool("auto_update", (*config.PluggableSCMMaterial).AutoUpdate, nil).ReadOnly(),
		), pluggableSCMRenames)

	return t
}

// scmFields binds the attributes shared by version control materials. url
// is nil for materials addressed some other way.
func scmFields[C any](base func(C) *config.ScmMaterial, url func(C) *string) []Field[C] {
	var fields []Field[C]
	if url != nil {
		fields = append(fields, String("url",
			func(m C) string { return *url(m) },
			func(m C, s string) { *url(m) = s }))
	}
	return append(fields,
		NullableString("destination",
			func(m C) string { return base(m).Folder },
			func(m C, s string) { base(m).Folder = s }),
		filterField(func(m C) *[]string { return &base(m).Filter }),
		nullableName("name",
			func(m C) config.CaseInsensitiveString { return base(m).Name },
			func(m C, n config.CaseInsensitiveString) { base(m).Name = n }),
		Bool("auto_update",
			func(m C) bool { return base(m).AutoUpdate },
			func(m C, b bool) { base(m).AutoUpdate = b }),
	)
}

// credentialFields binds username and the write-only password. Submitted
// passwords are encrypted and rejected when no cipher is configured.
func credentialFields[C any](creds func(C) *config.Credentials) []Field[C] {
	return []Field[C]{
		String("username",
			func(m C) string { return creds(m).Username },
			func(m C, s string) { creds(m).Username = s }),
		Custom("password", nil, func(m C, raw any, env *Env) error {
			s, err := asString("password", raw, false)
			if err != nil {
				return err
			}
			return secureValueError("password", creds(m).SetPassword(env.cipher(), s))
		}),
		String("encrypted_password",
			func(m C) string { return creds(m).EncryptedPassword },
			func(m C, s string) {
				if s != "" {
					creds(m).EncryptedPassword = s
				}
			}).OmitEmpty(),
	}
}

// filterField renders {"ignore": [...]} or null when there is nothing to ignore.
func filterField[C any](filter func(C) *[]string) Field[C] {
	return Field[C]{
		key:    "filter",
		object: true,
		render: func(m C, _ *Env) (any, error) {
			patterns := *filter(m)
			if len(patterns) == 0 {
				return nil, nil
			}
			ignore := make([]any, 0, len(patterns))
			for _, p := range patterns {
				ignore = append(ignore, p)
			}
			return NewDocument().Set("ignore", ignore), nil
		},
		parse: func(m C, raw any, _ *Env) error {
			items, err := asArray("ignore", valueOf(raw.(*Document), "ignore"))
			if err != nil {
				return err
			}
			patterns := make([]string, 0, len(items))
			for _, it := range items {
				s, err := asString("ignore", it, false)
				if err != nil {
					return err
				}
				patterns = append(patterns, s)
			}
			*filter(m) = patterns
			return nil
		},
	}
}

func valueOf(d *Document, key string) any {
	v, _ := d.Get(key)
	return v
}

var scmConfigRepresenter = New(
	String("id",
		func(s *config.SCMConfig) string { return s.ID },
		func(s *config.SCMConfig, v string) { s.ID = v }),
	String("name",
		func(s *config.SCMConfig) string { return s.Name },
		func(s *config.SCMConfig, v string) { s.Name = v }),
	Bool("auto_update",
		func(s *config.SCMConfig) bool { return s.AutoUpdate },
		func(s *config.SCMConfig, b bool) { s.AutoUpdate = b }),
	Object("plugin_configuration",
		func(s *config.SCMConfig) (*config.PluginConfiguration, bool) { return &s.Plugin, true },
		func(s *config.SCMConfig, p *config.PluginConfiguration) { s.Plugin = *p },
		func() *config.PluginConfiguration { return &config.PluginConfiguration{} },
		pluginConfigurationRepresenter),
	configurationField(
		func(s *config.SCMConfig) string { return s.Plugin.ID },
		func(s *config.SCMConfig) []*config.ConfigurationProperty { return s.Configuration },
		func(s *config.SCMConfig, c []*config.ConfigurationProperty) { s.Configuration = c }),
	ErrorsField[*config.SCMConfig](nil).OmitEmpty(),
)
