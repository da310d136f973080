package representer

import "github.com/GoCodeAlone/pipelineapi/config"

func namesField[T any](key string, get func(T) []config.CaseInsensitiveString, set func(T, []config.CaseInsensitiveString)) Field[T] {
	return Strings(key,
		func(v T) []string { return config.Strings(get(v)) },
		func(v T, s []string) { set(v, config.Names(s)) })
}

var authorizationRepresenter = New(
	namesField("roles",
		func(a *config.Authorization) []config.CaseInsensitiveString { return a.Roles },
		func(a *config.Authorization, r []config.CaseInsensitiveString) { a.Roles = r }).OmitEmpty(),
	namesField("users",
		func(a *config.Authorization) []config.CaseInsensitiveString { return a.Users },
		func(a *config.Authorization, u []config.CaseInsensitiveString) { a.Users = u }).OmitEmpty(),
	ErrorsField[*config.Authorization](nil).OmitEmpty(),
)

var approvalRepresenter = New(
	String("type",
		func(a *config.Approval) string { return a.Type },
		func(a *config.Approval, s string) { a.Type = s }),
	Object("authorization",
		func(a *config.Approval) (*config.Authorization, bool) { return &a.Authorization, true },
		func(a *config.Approval, auth *config.Authorization) { a.Authorization = *auth },
		func() *config.Authorization { return &config.Authorization{} },
		authorizationRepresenter),
	ErrorsField[*config.Approval](nil).OmitEmpty(),
)

var stageRepresenter = New(
	Name("name",
		func(s *config.StageConfig) config.CaseInsensitiveString { return s.Name },
		func(s *config.StageConfig, n config.CaseInsensitiveString) { s.Name = n }),
	Bool("fetch_materials",
		func(s *config.StageConfig) bool { return s.FetchMaterials },
		func(s *config.StageConfig, b bool) { s.FetchMaterials = b }),
	Bool("clean_working_directory",
		func(s *config.StageConfig) bool { return s.CleanWorkingDir },
		func(s *config.StageConfig, b bool) { s.CleanWorkingDir = b }),
	Bool("never_cleanup_artifacts",
		func(s *config.StageConfig) bool { return s.NeverCleanupArtifacts },
		func(s *config.StageConfig, b bool) { s.NeverCleanupArtifacts = b }),
	Object("approval",
		func(s *config.StageConfig) (*config.Approval, bool) { return s.Approval, s.Approval != nil },
		func(s *config.StageConfig, a *config.Approval) { s.Approval = a },
		func() *config.Approval { return &config.Approval{} },
		approvalRepresenter),
	variablesField(
		func(s *config.StageConfig) []*config.EnvironmentVariable { return s.Variables },
		func(s *config.StageConfig, v []*config.EnvironmentVariable) { s.Variables = v }).OmitEmpty(),
	Collection("jobs",
		func(s *config.StageConfig) []*config.JobConfig { return s.Jobs },
		func(s *config.StageConfig, j []*config.JobConfig) { s.Jobs = j },
		newJob, jobRepresenter),
	ErrorsField[*config.StageConfig](nil).OmitEmpty(),
)

// newStage starts from the defaults of a new stage so omitted flags keep them.
func newStage() *config.StageConfig {
	return &config.StageConfig{FetchMaterials: true, Approval: &config.Approval{Type: config.ApprovalSuccess}}
}
