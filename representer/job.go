package representer

import "github.com/GoCodeAlone/pipelineapi/config"

var tabRepresenter = New(
	String("name",
		func(t *config.Tab) string { return t.Name },
		func(t *config.Tab, s string) { t.Name = s }),
	String("path",
		func(t *config.Tab) string { return t.Path },
		func(t *config.Tab, s string) { t.Path = s }),
	ErrorsField[*config.Tab](nil).OmitEmpty(),
)

var propertyDefRepresenter = New(
	String("name",
		func(p *config.ArtifactProperty) string { return p.Name },
		func(p *config.ArtifactProperty, s string) { p.Name = s }),
	String("source",
		func(p *config.ArtifactProperty) string { return p.Source },
		func(p *config.ArtifactProperty, s string) { p.Source = s }),
	String("xpath",
		func(p *config.ArtifactProperty) string { return p.XPath },
		func(p *config.ArtifactProperty, s string) { p.XPath = s }),
	ErrorsField[*config.ArtifactProperty](nil).OmitEmpty(),
)

var artifactRenames = map[string]string{
	"src":  "source",
	"dest": "destination",
}

var artifactRepresenter = New(
	String("source",
		func(a *config.Artifact) string { return a.Source },
		func(a *config.Artifact, s string) { a.Source = s }),
	String("destination",
		func(a *config.Artifact) string { return a.Destination },
		func(a *config.Artifact, s string) { a.Destination = s }),
	String("type", func(a *config.Artifact) string { return a.Type }, nil).ReadOnly(),
	ErrorsField[*config.Artifact](artifactRenames).OmitEmpty(),
)

var artifactVariants = func() *VariantTable[*config.Artifact] {
	t := NewVariantTable(
		func(a *config.Artifact) string { return a.Type },
		func(tag string) string {
			return "Invalid Artifact type: " + tag + ". It can be one of '{build, test}'"
		},
		false)
	for _, kind := range []string{config.ArtifactBuild, config.ArtifactTest} {
		AddVariant(t, kind, func() *config.Artifact { return &config.Artifact{Type: kind} }, artifactRepresenter, artifactRenames)
	}
	return t
}()

var jobRepresenter = New(
	Name("name",
		func(j *config.JobConfig) config.CaseInsensitiveString { return j.Name },
		func(j *config.JobConfig, n config.CaseInsensitiveString) { j.Name = n }),
	Bool("run_on_all_agents",
		func(j *config.JobConfig) bool { return j.RunOnAllAgents },
		func(j *config.JobConfig, b bool) { j.RunOnAllAgents = b }),
	NullableString("run_instance_count",
		func(j *config.JobConfig) string { return j.RunInstanceCount },
		func(j *config.JobConfig, s string) { j.RunInstanceCount = s }),
	NullableString("timeout",
		func(j *config.JobConfig) string { return j.Timeout },
		func(j *config.JobConfig, s string) { j.Timeout = s }),
	variablesField(
		func(j *config.JobConfig) []*config.EnvironmentVariable { return j.Variables },
		func(j *config.JobConfig, v []*config.EnvironmentVariable) { j.Variables = v }),
	Strings("resources",
		func(j *config.JobConfig) []string { return j.Resources },
		func(j *config.JobConfig, r []string) { j.Resources = r }).NullWhenEmpty(),
	Variants("tasks",
		func(j *config.JobConfig) []config.Task { return j.Tasks },
		func(j *config.JobConfig, t []config.Task) { j.Tasks = t },
		taskVariants).SkipEmptyItems(),
	Collection("tabs",
		func(j *config.JobConfig) []*config.Tab { return j.Tabs },
		func(j *config.JobConfig, t []*config.Tab) { j.Tabs = t },
		func() *config.Tab { return &config.Tab{} },
		tabRepresenter).NullWhenEmpty(),
	Variants("artifacts",
		func(j *config.JobConfig) []*config.Artifact { return j.Artifacts },
		func(j *config.JobConfig, a []*config.Artifact) { j.Artifacts = a },
		artifactVariants).SkipEmptyItems().NullWhenEmpty(),
	Collection("properties",
		func(j *config.JobConfig) []*config.ArtifactProperty { return j.Properties },
		func(j *config.JobConfig, p []*config.ArtifactProperty) { j.Properties = p },
		func() *config.ArtifactProperty { return &config.ArtifactProperty{} },
		propertyDefRepresenter).NullWhenEmpty(),
	ErrorsField[*config.JobConfig](nil).OmitEmpty(),
)

func newJob() *config.JobConfig { return &config.JobConfig{} }
