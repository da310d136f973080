package config

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// LabelTemplateError is reported when a label template cannot be parsed.
const LabelTemplateError = "Invalid label. Label should be composed of alphanumeric text, it should contain the builder number as ${COUNT}, can contain a material revision as ${<material-name>} of ${<material-name>[:<number>]}, or use params as #{<param-name>}."

// ArtifactDestinationPattern is what a non-empty artifact destination must match.
const ArtifactDestinationPattern = `(([.]\/)?[.][^. ]+)|([^. ].+[^. ])|([^. ][^. ])|([^. ])`

var (
	labelTemplatePattern = regexp.MustCompile(`^(?:(([a-zA-Z0-9_\-.!~*'()#:])*[$#]\{[a-zA-Z0-9_\-.!~*'()#:]+(\[:(\d+)])?\}([a-zA-Z0-9_\-.!~*'()#:])*)+)$`)
	labelMaterialRef     = regexp.MustCompile(`\$\{([^}\[]+)(\[:\d+])?\}`)
	artifactDestination  = regexp.MustCompile(`^(?:` + ArtifactDestinationPattern + `)$`)
	tabNamePattern       = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)

	cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// ValidationContext gives tree validation access to the rest of the
// configuration: other pipelines for dependency checks and known templates.
type ValidationContext struct {
	pipelines map[string]*PipelineConfig
	templates map[string]bool
}

// NewValidationContext indexes pipelines and template names.
func NewValidationContext(pipelines []*PipelineConfig, templates []string) *ValidationContext {
	c := &ValidationContext{
		pipelines: make(map[string]*PipelineConfig, len(pipelines)),
		templates: make(map[string]bool, len(templates)),
	}
	for _, p := range pipelines {
		c.pipelines[p.Name.Folded()] = p
	}
	for _, t := range templates {
		c.templates[NewName(t).Folded()] = true
	}
	return c
}

func (c *ValidationContext) pipeline(name CaseInsensitiveString) *PipelineConfig {
	if c == nil {
		return nil
	}
	return c.pipelines[name.Folded()]
}

func (c *ValidationContext) hasTemplate(name CaseInsensitiveString) bool {
	return c != nil && c.templates[name.Folded()]
}

// ValidateTree clears and recomputes the errors of every node under p and
// reports whether the tree is free of errors. ctx may be nil.
func ValidateTree(p *PipelineConfig, ctx *ValidationContext) bool {
	p.ClearErrors()
	validatePipeline(p, ctx)
	return len(p.AllErrors()) == 0
}

func validatePipeline(p *PipelineConfig, ctx *ValidationContext) {
	name := p.Name.String()
	if !IsValidName(name) {
		p.AddError("name", invalidNameMessage("pipeline", name))
	}
	validateLabelTemplate(p)

	if len(p.Materials) == 0 {
		p.AddError("materials", "A pipeline must have at least one material")
	}
	switch {
	case p.HasTemplate() && len(p.Stages) > 0:
		p.AddError("stages", fmt.Sprintf("Cannot add stages to pipeline '%s' which already references template '%s'", name, p.TemplateName))
		p.AddError("template", fmt.Sprintf("Cannot set template '%s' on pipeline '%s' because it already has stages defined", p.TemplateName, name))
	case p.HasTemplate():
		if ctx != nil && !ctx.hasTemplate(p.TemplateName) {
			p.AddError("template", fmt.Sprintf("Template '%s' does not exist", p.TemplateName))
		}
	case len(p.Stages) == 0:
		p.AddError("stages", "A pipeline must have at least one stage")
	}

	validateParams(p)
	validateVariables(p.Variables, "pipeline", name)
	validateMaterials(p, ctx)

	seen := map[string]bool{}
	for _, s := range p.Stages {
		key := s.Name.Folded()
		if seen[key] {
			s.AddError("name", fmt.Sprintf("You have defined multiple stages called '%s'. Stage names are case-insensitive and must be unique.", s.Name))
		}
		seen[key] = true
		validateStage(s)
	}

	if p.TrackingTool != nil {
		validateTrackingTool(p.TrackingTool)
	}
	if p.Timer != nil {
		validateTimer(p.Timer)
	}
	if ctx != nil {
		if cycle := findCycle(p, ctx); cycle != nil {
			p.AddError("base", "Circular dependency: "+strings.Join(cycle, " <- "))
		}
	}
}

func validateLabelTemplate(p *PipelineConfig) {
	if !labelTemplatePattern.MatchString(p.LabelTemplate) {
		p.AddError("labelTemplate", LabelTemplateError)
		return
	}
	for _, m := range labelMaterialRef.FindAllStringSubmatch(p.LabelTemplate, -1) {
		ref := NewName(m[1])
		if ref.Equal("COUNT") {
			continue
		}
		if p.Material(ref) == nil {
			p.AddError("labelTemplate", fmt.Sprintf("You have defined a label template in pipeline %s that refers to a material called %s, but no material with this name is defined.", p.Name, m[1]))
		}
	}
}

func validateParams(p *PipelineConfig) {
	seen := map[string]bool{}
	for _, param := range p.Params {
		if strings.TrimSpace(param.Name) == "" {
			param.AddError("name", fmt.Sprintf("Parameter cannot have an empty name for pipeline '%s'.", p.Name))
		}
		if !IsValidName(param.Name) {
			param.AddError("name", invalidNameMessage("parameter", param.Name))
		}
		if param.Name == "" {
			continue
		}
		if seen[param.Name] {
			param.AddError("name", fmt.Sprintf("Param name '%s' is not unique for pipeline '%s'.", param.Name, p.Name))
		}
		seen[param.Name] = true
	}
}

func validateVariables(vars []*EnvironmentVariable, parentType, parentName string) {
	seen := map[string]bool{}
	for _, v := range vars {
		if strings.TrimSpace(v.Name) == "" {
			v.AddError("name", fmt.Sprintf("Environment Variable cannot have an empty name for %s '%s'.", parentType, parentName))
			continue
		}
		key := strings.ToLower(v.Name)
		if seen[key] {
			v.AddError("name", fmt.Sprintf("Environment Variable name '%s' is not unique for %s '%s'.", v.Name, parentType, parentName))
		}
		seen[key] = true
	}
}

func validateMaterials(p *PipelineConfig, ctx *ValidationContext) {
	scmCount := 0
	for _, m := range p.Materials {
		if _, ok := scmMaterialFolder(m); ok {
			scmCount++
		}
	}
	names := map[string]bool{}
	folders := map[string]bool{}
	for _, m := range p.Materials {
		if n := m.MaterialName(); !n.IsBlank() {
			if names[n.Folded()] {
				m.Errors().Add("materialName", fmt.Sprintf("You have defined multiple materials called '%s'. Material names are case-insensitive and must be unique.", n))
			}
			names[n.Folded()] = true
		}
		if folder, ok := scmMaterialFolder(m); ok {
			switch {
			case folder == "" && scmCount > 1:
				m.Errors().Add("folder", "Destination directory is required when specifying multiple scm materials")
			case folder != "" && outsideWorkingDir(folder):
				m.Errors().Add("folder", fmt.Sprintf("Dest folder '%s' is not valid. It must be a sub-directory of the working folder.", folder))
			case folder != "":
				key := path.Clean(folder)
				if folders[key] {
					m.Errors().Add("folder", "The destination directory must be unique across materials.")
				}
				folders[key] = true
			}
		}
		validateMaterial(p, m, ctx)
	}
}

func validateMaterial(p *PipelineConfig, m Material, ctx *ValidationContext) {
	e := m.Errors()
	switch v := m.(type) {
	case *GitMaterial:
		requireURL(e, v.URL)
	case *SvnMaterial:
		requireURL(e, v.URL)
	case *HgMaterial:
		requireURL(e, v.URL)
	case *TfsMaterial:
		requireURL(e, v.URL)
		if strings.TrimSpace(v.Username) == "" {
			e.Add("username", "Username cannot be blank")
		}
		if strings.TrimSpace(v.ProjectPath) == "" {
			e.Add("projectPath", "Project Path cannot be blank")
		}
	case *P4Material:
		if strings.TrimSpace(v.ServerAndPort) == "" {
			e.Add("serverAndPort", "P4 port cannot be empty.")
		}
		if strings.TrimSpace(v.View) == "" {
			e.Add("view", "P4 view cannot be empty.")
		}
	case *DependencyMaterial:
		validateDependency(p, v, ctx)
	case *PackageMaterial:
		if strings.TrimSpace(v.PackageID) == "" {
			e.Add("packageId", "Please select a repository and package")
		}
	case *PluggableSCMMaterial:
		if strings.TrimSpace(v.SCMID) == "" {
			e.Add("scmId", "Please select a SCM")
		}
	}
}

func requireURL(e *Errors, url string) {
	if strings.TrimSpace(url) == "" {
		e.Add("url", "URL cannot be blank")
	}
}

func outsideWorkingDir(folder string) bool {
	if path.IsAbs(folder) || strings.HasPrefix(folder, `\`) {
		return true
	}
	clean := path.Clean(strings.ReplaceAll(folder, `\`, "/"))
	return clean == ".." || strings.HasPrefix(clean, "../")
}

func validateDependency(p *PipelineConfig, d *DependencyMaterial, ctx *ValidationContext) {
	if d.PipelineName.IsBlank() {
		d.AddError("pipelineName", "Pipeline name cannot be blank")
		return
	}
	if d.StageName.IsBlank() {
		d.AddError("stageName", "Stage name cannot be blank")
		return
	}
	if ctx == nil {
		return
	}
	upstream := ctx.pipeline(d.PipelineName)
	if d.PipelineName.Equal(p.Name) {
		upstream = p
	}
	if upstream == nil {
		d.AddError("pipelineName", fmt.Sprintf("Pipeline with name '%s' does not exist, it is defined as a dependency for pipeline '%s' (%s)", d.PipelineName, p.Name, d.MaterialName()))
		return
	}
	if upstream.Stage(d.StageName) == nil && !upstream.HasTemplate() {
		d.AddError("stageName", fmt.Sprintf("Stage with name '%s' does not exist on pipeline '%s', it is being referred to from pipeline '%s' (%s)", d.StageName, d.PipelineName, p.Name, d.MaterialName()))
	}
}

// findCycle returns the dependency chain that leads back to p, if any.
func findCycle(p *PipelineConfig, ctx *ValidationContext) []string {
	lookup := func(name CaseInsensitiveString) *PipelineConfig {
		if name.Equal(p.Name) {
			return p
		}
		return ctx.pipeline(name)
	}
	visited := map[string]bool{}
	var walk func(cur *PipelineConfig, chain []string) []string
	walk = func(cur *PipelineConfig, chain []string) []string {
		for _, up := range cur.Upstreams() {
			next := append(append([]string(nil), chain...), up.String())
			if up.Equal(p.Name) {
				return next
			}
			if visited[up.Folded()] {
				continue
			}
			visited[up.Folded()] = true
			if u := lookup(up); u != nil {
				if c := walk(u, next); c != nil {
					return c
				}
			}
		}
		return nil
	}
	return walk(p, []string{p.Name.String()})
}

func validateStage(s *StageConfig) {
	name := s.Name.String()
	if !IsValidName(name) {
		s.AddError("name", invalidNameMessage("stage", name))
	}
	if s.Approval != nil && s.Approval.Type != ApprovalSuccess && s.Approval.Type != ApprovalManual {
		s.Approval.AddError("type", fmt.Sprintf("You have defined approval type as '%s'. Approval can only be of the type 'manual' or 'success'.", s.Approval.Type))
	}
	validateVariables(s.Variables, "stage", name)
	if len(s.Jobs) == 0 {
		s.AddError("jobs", "A stage must have at least one job")
	}
	seen := map[string]bool{}
	for _, j := range s.Jobs {
		key := j.Name.Folded()
		if key != "" && seen[key] {
			j.AddError("name", fmt.Sprintf("You have defined multiple jobs called '%s'. Job names are case-insensitive and must be unique.", j.Name))
		}
		seen[key] = true
		validateJob(j)
	}
}

func validateJob(j *JobConfig) {
	name := j.Name.String()
	switch {
	case j.Name.IsBlank():
		j.AddError("name", "Name is a required field")
	case !IsValidName(name):
		j.AddError("name", invalidNameMessage("job", name))
	}

	if j.RunInstanceCount != "" {
		n, err := strconv.Atoi(j.RunInstanceCount)
		switch {
		case err != nil:
			j.AddError("runInstanceCount", "'Run Instance Count' should be a valid positive integer as it represents number of instances Go needs to spawn during runtime.")
		case n < 0:
			j.AddError("runInstanceCount", "'Run Instance Count' cannot be a negative number as it represents number of instances Go needs to spawn during runtime.")
		}
		if j.RunOnAllAgents {
			j.AddError("runType", "Job cannot be 'run on all agents' type and 'run multiple instance' type together.")
		}
	}
	if j.Timeout != "" {
		t, err := strconv.ParseFloat(j.Timeout, 64)
		switch {
		case err != nil:
			j.AddError("timeout", "Timeout should be a valid number as it represents number of minutes")
		case t < 0:
			j.AddError("timeout", "Timeout cannot be a negative number as it represents number of minutes")
		}
	}

	validateVariables(j.Variables, "job", name)
	for _, t := range j.Tasks {
		validateTask(t)
	}

	tabs := map[string]bool{}
	for _, tab := range j.Tabs {
		if !tabNamePattern.MatchString(tab.Name) {
			tab.AddError("name", fmt.Sprintf("Tab name '%s' is invalid. This must be alphanumeric and can contain underscores and periods.", tab.Name))
		}
		key := strings.ToLower(tab.Name)
		if tabs[key] {
			tab.AddError("name", fmt.Sprintf("Tab name '%s' is not unique.", tab.Name))
		}
		tabs[key] = true
	}

	for _, a := range j.Artifacts {
		if strings.TrimSpace(a.Source) == "" {
			a.AddError("src", fmt.Sprintf("Job '%s' has an artifact with an empty source", displayValue(name)))
		}
		if a.Destination != "" && !artifactDestination.MatchString(a.Destination) {
			a.AddError("dest", "Invalid destination path. Destination path should match the pattern "+ArtifactDestinationPattern)
		}
	}

	props := map[string]bool{}
	for _, p := range j.Properties {
		if strings.TrimSpace(p.Name) == "" {
			p.AddError("name", "Invalid property name 'null'.")
		} else if props[p.Name] {
			p.AddError("name", fmt.Sprintf("Duplicate property name '%s' found for job '%s'.", p.Name, name))
		}
		props[p.Name] = true
		if strings.TrimSpace(p.Source) == "" {
			p.AddError("src", "Invalid property source 'null'.")
		}
		if strings.TrimSpace(p.XPath) == "" {
			p.AddError("xpath", "Invalid property xpath 'null'.")
		}
	}
}

func validateTask(t Task) {
	switch v := t.(type) {
	case *ExecTask:
		if strings.TrimSpace(v.Command) == "" {
			v.AddError("command", "Command cannot be empty")
		}
		if v.Args != "" && len(v.Arguments) > 0 {
			v.AddError("args", "Can not use both 'args' attribute and 'arg' sub element in 'exec' element!")
		}
	case *FetchTask:
		if v.Job.IsBlank() {
			v.AddError("job", "Job is a required field.")
		}
		if v.Stage.IsBlank() {
			v.AddError("stage", "Stage is a required field.")
		}
		if strings.TrimSpace(v.Source) == "" {
			v.AddError("src", "Should provide either srcdir or srcfile")
		}
	case *PluggableTask:
		if strings.TrimSpace(v.Plugin.ID) == "" {
			v.AddError("pluginConfiguration", "Plugin id cannot be blank")
		}
	}
	if oc := t.Base().OnCancel; oc != nil {
		validateTask(oc)
	}
}

func validateTrackingTool(t TrackingTool) {
	switch v := t.(type) {
	case *ExternalTracker:
		switch {
		case strings.TrimSpace(v.Link) == "":
			v.AddError("link", "Link should be populated")
		case !strings.Contains(v.Link, "${ID}"):
			v.AddError("link", "Link must be a URL containing '${ID}'. Go will replace the string '${ID}' with the first matched group from the regex at run-time.")
		}
		if strings.TrimSpace(v.Regex) == "" {
			v.AddError("regex", "Regex should be populated")
		}
	case *MingleConfig:
		if !strings.HasPrefix(v.BaseURL, "https://") {
			v.AddError("baseUrl", "Should be a URL starting with https://")
		}
		if strings.TrimSpace(v.ProjectIdentifier) == "" {
			v.AddError("projectIdentifier", "Should be a valid mingle identifier.")
		}
	}
}

// validateTimer accepts six field cron specs with seconds and the optional
// seventh year field.
func validateTimer(t *TimerConfig) {
	fields := strings.Fields(t.Spec)
	if len(fields) == 7 {
		fields = fields[:6]
	}
	if len(fields) != 6 {
		t.AddError("spec", "Invalid cron syntax")
		return
	}
	if _, err := cronParser.Parse(strings.Join(fields, " ")); err != nil {
		t.AddError("spec", "Invalid cron syntax")
	}
}
