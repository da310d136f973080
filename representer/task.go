package representer

import "github.com/GoCodeAlone/pipelineapi/config"

// taskVariants resolves the task slot of jobs and of on_cancel.
var taskVariants = newTaskVariants()

func newTaskVariants() *VariantTable[config.Task] {
	t := NewVariantTable(
		func(task config.Task) string { return task.TaskType() },
		func(tag string) string {
			return "Invalid Task type: " + tag + ". It can be one of '{pluggable_task, exec, Ant, nant, rake, fetch}'"
		},
		true)

	AddVariant(t, config.TaskExec, func() *config.ExecTask { return &config.ExecTask{} },
		New(append(taskCommonFields[*config.ExecTask](t),
			String("command",
				func(e *config.ExecTask) string { return e.Command },
				func(e *config.ExecTask, s string) { e.Command = s }),
			Strings("arguments",
				func(e *config.ExecTask) []string { return e.Arguments },
				func(e *config.ExecTask, a []string) { e.Arguments = a }).OmitEmpty(),
			String("args",
				func(e *config.ExecTask) string { return e.Args },
				func(e *config.ExecTask, s string) { e.Args = s }).OmitEmpty(),
			String("working_dir",
				func(e *config.ExecTask) string { return e.WorkingDir },
				func(e *config.ExecTask, s string) { e.WorkingDir = s }),
		)...), nil)

	AddVariant(t, config.TaskAnt, func() *config.AntTask { return &config.AntTask{} },
		New(append(taskCommonFields[*config.AntTask](t),
			buildTaskFields(func(a *config.AntTask) *config.BuildTask { return &a.BuildTask })...)...), nil)

	AddVariant(t, config.TaskRake, func() *config.RakeTask { return &config.RakeTask{} },
		New(append(taskCommonFields[*config.RakeTask](t),
			buildTaskFields(func(r *config.RakeTask) *config.BuildTask { return &r.BuildTask })...)...), nil)

	nant := append(taskCommonFields[*config.NantTask](t),
		buildTaskFields(func(n *config.NantTask) *config.BuildTask { return &n.BuildTask })...)
	nant = append(nant, String("nant_path",
		func(n *config.NantTask) string { return n.NantPath },
		func(n *config.NantTask, s string) { n.NantPath = s }))
	AddVariant(t, config.TaskNant, func() *config.NantTask { return &config.NantTask{} }, New(nant...), nil)

	AddVariant(t, config.TaskFetch, func() *config.FetchTask { return &config.FetchTask{} },
		New(append(taskCommonFields[*config.FetchTask](t),
			nullableName("pipeline",
				func(f *config.FetchTask) config.CaseInsensitiveString { return f.Pipeline },
				func(f *config.FetchTask, n config.CaseInsensitiveString) { f.Pipeline = n }),
			nullableName("stage",
				func(f *config.FetchTask) config.CaseInsensitiveString { return f.Stage },
				func(f *config.FetchTask, n config.CaseInsensitiveString) { f.Stage = n }),
			nullableName("job",
				func(f *config.FetchTask) config.CaseInsensitiveString { return f.Job },
				func(f *config.FetchTask, n config.CaseInsensitiveString) { f.Job = n }),
			Bool("is_source_a_file",
				func(f *config.FetchTask) bool { return f.IsSourceAFile },
				func(f *config.FetchTask, b bool) { f.IsSourceAFile = b }),
			String("source",
				func(f *config.FetchTask) string { return f.Source },
				func(f *config.FetchTask, s string) { f.Source = s }),
			String("destination",
				func(f *config.FetchTask) string { return f.Dest },
				func(f *config.FetchTask, s string) { f.Dest = s }),
		)...), nil)

	AddVariant(t, config.TaskPluggable, func() *config.PluggableTask { return &config.PluggableTask{} },
		New(append(taskCommonFields[*config.PluggableTask](t),
			Object("plugin_configuration",
				func(p *config.PluggableTask) (*config.PluginConfiguration, bool) { return &p.Plugin, true },
				func(p *config.PluggableTask, c *config.PluginConfiguration) { p.Plugin = *c },
				func() *config.PluginConfiguration { return &config.PluginConfiguration{} },
				pluginConfigurationRepresenter),
			configurationField(
				func(p *config.PluggableTask) string { return p.Plugin.ID },
				func(p *config.PluggableTask) []*config.ConfigurationProperty { return p.Configuration },
				func(p *config.PluggableTask, c []*config.ConfigurationProperty) { p.Configuration = c }),
		)...), nil)

	return t
}

// taskCommonFields binds run_if and on_cancel. on_cancel recurses into the
// table being built.
func taskCommonFields[C config.Task](t *VariantTable[config.Task]) []Field[C] {
	onCancel := Field[C]{
		key:    "on_cancel",
		object: true,
		render: func(task C, env *Env) (any, error) {
			oc := task.Base().OnCancel
			if oc == nil || oc.TaskType() == config.TaskKillAllChildren {
				return nil, nil
			}
			return t.Encode(oc, env)
		},
		parse: func(task C, raw any, env *Env) error {
			oc, err := t.Decode(raw.(*Document), env)
			if err != nil {
				return err
			}
			task.Base().OnCancel = oc
			return nil
		},
		omitEmpty: true,
	}
	return []Field[C]{
		Strings("run_if",
			func(task C) []string { return task.Base().RunIf },
			func(task C, r []string) { task.Base().RunIf = r }).OmitEmpty(),
		onCancel,
	}
}

func buildTaskFields[C any](build func(C) *config.BuildTask) []Field[C] {
	return []Field[C]{
		String("working_dir",
			func(c C) string { return build(c).WorkingDir },
			func(c C, s string) { build(c).WorkingDir = s }),
		String("build_file",
			func(c C) string { return build(c).BuildFile },
			func(c C, s string) { build(c).BuildFile = s }),
		String("target",
			func(c C) string { return build(c).Target },
			func(c C, s string) { build(c).Target = s }),
	}
}

func nullableName[T any](key string, get func(T) config.CaseInsensitiveString, set func(T, config.CaseInsensitiveString)) Field[T] {
	return NullableString(key,
		func(v T) string { return get(v).String() },
		func(v T, s string) { set(v, config.NewName(s)) })
}
