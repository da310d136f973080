package representer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/pipelineapi/config"
)

type prefixCipher struct{}

func (prefixCipher) Encrypt(s string) (string, error) { return "enc:" + s, nil }

func (prefixCipher) Decrypt(s string) (string, error) { return strings.TrimPrefix(s, "enc:"), nil }

type securePlugins map[string]bool

func (p securePlugins) IsSecure(pluginID, key string) bool { return p[pluginID+"/"+key] }

func testCodec() *Codec {
	return NewCodec(prefixCipher{}, securePlugins{"curl/password": true})
}

func parse(t *testing.T, s string) *Document {
	t.Helper()
	d, err := ParseDocument(strings.NewReader(s))
	require.NoError(t, err)
	return d
}

func render(t *testing.T, d *Document) string {
	t.Helper()
	out, err := d.Canonical()
	require.NoError(t, err)
	return string(out)
}

func renderValue(t *testing.T, v any) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, writeValue(&buf, v))
	return buf.String()
}

func samplePipeline() *config.PipelineConfig {
	p := config.NewPipelineConfig("wunderbar")
	p.LabelTemplate = "foo-1.0.${COUNT}"
	svn := &config.SvnMaterial{URL: "http://some/svn/url"}
	svn.Name = "http___some_svn_url"
	svn.Folder = "svnDir"
	svn.AutoUpdate = true
	svn.Username = "user"
	svn.EncryptedPassword = "enc:pass"
	p.Materials = []config.Material{svn}
	p.Stages = []*config.StageConfig{
		config.NewStageConfig("mingle", config.NewJobConfig("defaultJob", &config.ExecTask{Command: "ls"})),
	}
	return p
}

func TestEncodePipelineWithLinks(t *testing.T) {
	d, err := testCodec().EncodeWithLinks(samplePipeline(), NewLinkBuilder("http://test.host/go/"))
	require.NoError(t, err)

	expected := `{
	  "_links": {
	    "self": {"href": "http://test.host/go/api/admin/pipelines/wunderbar"},
	    "doc": {"href": "http://api.go.cd/#pipeline_config"},
	    "find": {"href": "http://test.host/go/api/admin/pipelines/:name"}
	  },
	  "label_template": "foo-1.0.${COUNT}",
	  "enable_pipeline_locking": false,
	  "name": "wunderbar",
	  "materials": [{
	    "type": "SvnMaterial",
	    "attributes": {
	      "url": "http://some/svn/url",
	      "destination": "svnDir",
	      "filter": null,
	      "name": "http___some_svn_url",
	      "auto_update": true,
	      "check_externals": false,
	      "username": "user",
	      "encrypted_password": "enc:pass"
	    }
	  }],
	  "stages": [{
	    "name": "mingle",
	    "fetch_materials": true,
	    "clean_working_directory": false,
	    "never_cleanup_artifacts": false,
	    "approval": {"type": "success", "authorization": {}},
	    "jobs": [{
	      "name": "defaultJob",
	      "run_on_all_agents": false,
	      "run_instance_count": null,
	      "timeout": null,
	      "environment_variables": [],
	      "resources": null,
	      "tasks": [{"type": "exec", "attributes": {"command": "ls", "working_dir": ""}}],
	      "tabs": null,
	      "artifacts": null,
	      "properties": null
	    }]
	  }],
	  "errors": {}
	}`
	assert.JSONEq(t, expected, render(t, d))
	assert.Equal(t, "_links", d.Keys()[0])
	assert.Equal(t, "errors", d.Keys()[d.Len()-1])
}

func TestEncodeWithoutLinksOmitsLinks(t *testing.T) {
	d, err := testCodec().Encode(samplePipeline())
	require.NoError(t, err)
	assert.False(t, d.Has("_links"))
}

func TestDecodeFillsMissingCollections(t *testing.T) {
	p, err := testCodec().Decode(parse(t, `{"name":"p1","label_template":"${COUNT}"}`))
	require.NoError(t, err)

	assert.NotNil(t, p.Materials)
	assert.Empty(t, p.Materials)
	assert.NotNil(t, p.Stages)
	assert.NotNil(t, p.Params)
	assert.NotNil(t, p.Variables)
	assert.Nil(t, p.TrackingTool)
	assert.Nil(t, p.Timer)
}

func TestDecodeNullCollectionsAsEmpty(t *testing.T) {
	p, err := testCodec().Decode(parse(t, `{"name":"p1","materials":null,"stages":[{"name":"s","jobs":[{"name":"j","resources":null,"tabs":null}]}]}`))
	require.NoError(t, err)
	require.Len(t, p.Stages, 1)
	job := p.Stages[0].Jobs[0]
	assert.NotNil(t, job.Resources)
	assert.NotNil(t, job.Tabs)
	assert.NotNil(t, job.Tasks)
	assert.True(t, p.Stages[0].FetchMaterials)
	assert.Equal(t, config.ApprovalSuccess, p.Stages[0].Approval.Type)
}

func TestDecodeIgnoresUnknownAndReadOnlyKeys(t *testing.T) {
	p, err := testCodec().Decode(parse(t, `{
	  "name": "p1",
	  "bogus": 42,
	  "errors": {"name": ["should not be read"]},
	  "materials": [{"type": "PackageMaterial", "attributes": {"ref": "pkg-1", "name": "ignored", "auto_update": false}}]
	}`))
	require.NoError(t, err)
	assert.True(t, p.Errors().IsEmpty())
	pkg := p.Materials[0].(*config.PackageMaterial)
	assert.Equal(t, "pkg-1", pkg.PackageID)
	assert.Equal(t, config.CaseInsensitiveString(""), pkg.Name)
}

func TestDecodeUnknownMaterialType(t *testing.T) {
	_, err := testCodec().Decode(parse(t, `{"name":"p1","materials":[{"type":"bad-material-type","attributes":{}}]}`))
	var unprocessable *UnprocessableEntityError
	require.True(t, errors.As(err, &unprocessable))
	assert.Equal(t, "Invalid material type 'bad-material-type'. It has to be one of 'GitMaterial SvnMaterial HgMaterial P4Material TfsMaterial DependencyMaterial PackageMaterial PluggableSCMMaterial'", unprocessable.Message)
}

func TestDecodeUnknownTaskType(t *testing.T) {
	_, err := testCodec().Decode(parse(t, `{"name":"p1","stages":[{"name":"s","jobs":[{"name":"j","tasks":[{"type":"bad-task"}]}]}]}`))
	var unprocessable *UnprocessableEntityError
	require.True(t, errors.As(err, &unprocessable))
	assert.Equal(t, "Invalid Task type: bad-task. It can be one of '{pluggable_task, exec, Ant, nant, rake, fetch}'", unprocessable.Message)
}

func TestDecodeUnknownArtifactAndTrackingTool(t *testing.T) {
	_, err := testCodec().Decode(parse(t, `{"name":"p1","stages":[{"name":"s","jobs":[{"name":"j","artifacts":[{"source":"a","type":"junk"}]}]}]}`))
	assert.EqualError(t, err, "Invalid Artifact type: junk. It can be one of '{build, test}'")

	_, err = testCodec().Decode(parse(t, `{"name":"p1","tracking_tool":{"type":"jira","attributes":{}}}`))
	assert.EqualError(t, err, "Invalid tracking tool type: jira. It can be one of '{external, mingle}'")
}

func TestDecodeRejectsWrongShapes(t *testing.T) {
	cases := map[string]string{
		`{"name":"p1","timer":"0 0 * * * ?"}`:                            "Expected timer to contain an object, got a string instead!",
		`{"name":"p1","tracking_tool":[1]}`:                              "Expected tracking_tool to contain an object, got a array instead!",
		`{"name":"p1","materials":[{"type":"GitMaterial","attributes":5}]}`: "Expected attributes to contain an object, got a number instead!",
		`{"name":"p1","enable_pipeline_locking":"yes"}`:                  "Expected enable_pipeline_locking to contain a boolean, got a string instead!",
		`{"name":"p1","stages":"none"}`:                                  "Expected stages to contain an array, got a string instead!",
	}
	for body, msg := range cases {
		_, err := testCodec().Decode(parse(t, body))
		var unprocessable *UnprocessableEntityError
		if assert.True(t, errors.As(err, &unprocessable), body) {
			assert.Equal(t, msg, unprocessable.Message, body)
		}
	}
}

func TestDecodeNullObjectIsAbsent(t *testing.T) {
	p, err := testCodec().Decode(parse(t, `{"name":"p1","timer":null,"tracking_tool":null}`))
	require.NoError(t, err)
	assert.Nil(t, p.Timer)
	assert.Nil(t, p.TrackingTool)
}

func TestMaterialVariantsRoundTrip(t *testing.T) {
	materials := []string{
		`{"type":"GitMaterial","attributes":{"url":"http://github.com/gocd/gocd","destination":"gocd","filter":{"ignore":["**/*.html","**/foobar/"]},"name":"gocd","auto_update":true,"branch":"master","submodule_folder":"sub"}}`,
		`{"type":"SvnMaterial","attributes":{"url":"http://svn","destination":null,"filter":null,"name":null,"auto_update":false,"check_externals":true,"username":"u","encrypted_password":"enc:pw"}}`,
		`{"type":"HgMaterial","attributes":{"url":"http://hg","destination":"hg","filter":null,"name":"hg","auto_update":true}}`,
		`{"type":"P4Material","attributes":{"destination":"p4","filter":null,"name":null,"auto_update":true,"port":"p4:1666","use_tickets":false,"view":"//depot/... //client/...","username":"u"}}`,
		`{"type":"TfsMaterial","attributes":{"url":"http://tfs","destination":"tfs","filter":null,"name":"tfs","auto_update":true,"domain":"corp","username":"u","encrypted_password":"enc:pw","project_path":"$/project"}}`,
		`{"type":"DependencyMaterial","attributes":{"pipeline":"upstream","stage":"dist","name":"up","auto_update":true}}`,
		`{"type":"PluggableSCMMaterial","attributes":{"ref":"scm-id","scm_config":{"id":"scm-id","name":"my-scm","auto_update":true,"plugin_configuration":{"id":"github.pr","version":"1"},"configuration":[{"key":"url","value":"https://github.com/x/y"}]},"filter":null,"destination":"dest","name":"my-scm","auto_update":true}}`,
	}
	codec := testCodec()
	for _, m := range materials {
		p, err := codec.Decode(parse(t, `{"name":"p1","materials":[`+m+`]}`))
		require.NoError(t, err, m)
		d, err := codec.Encode(p)
		require.NoError(t, err)
		got, _ := d.Get("materials")
		assert.JSONEq(t, m, renderValue(t, got.([]any)[0]), m)
	}
}

func TestMaterialPasswordIsWriteOnlyAndEncrypted(t *testing.T) {
	p, err := testCodec().Decode(parse(t, `{"name":"p1","materials":[{"type":"SvnMaterial","attributes":{"url":"http://svn","password":"secret"}}]}`))
	require.NoError(t, err)
	svn := p.Materials[0].(*config.SvnMaterial)
	assert.Equal(t, "enc:secret", svn.EncryptedPassword)

	d, err := testCodec().Encode(p)
	require.NoError(t, err)
	assert.NotContains(t, render(t, d), `"password"`)
	assert.Contains(t, render(t, d), `"encrypted_password":"enc:secret"`)
}

func TestTaskVariantsRoundTrip(t *testing.T) {
	tasks := []string{
		`{"type":"exec","attributes":{"run_if":["passed"],"command":"make","arguments":["-j","4"],"working_dir":"src"}}`,
		`{"type":"exec","attributes":{"command":"ls","args":"-al","working_dir":""}}`,
		`{"type":"ant","attributes":{"working_dir":"w","build_file":"build.xml","target":"all"}}`,
		`{"type":"nant","attributes":{"working_dir":"w","build_file":"b.build","target":"t","nant_path":"/opt/nant"}}`,
		`{"type":"rake","attributes":{"run_if":["failed"],"working_dir":"","build_file":"Rakefile","target":"spec"}}`,
		`{"type":"fetch","attributes":{"pipeline":"up","stage":"s","job":"j","is_source_a_file":true,"source":"a.zip","destination":"lib"}}`,
		`{"type":"fetch","attributes":{"pipeline":null,"stage":null,"job":null,"is_source_a_file":false,"source":"dir","destination":""}}`,
		`{"type":"exec","attributes":{"on_cancel":{"type":"exec","attributes":{"command":"cleanup","working_dir":""}},"command":"run","working_dir":""}}`,
		`{"type":"pluggable_task","attributes":{"plugin_configuration":{"id":"curl","version":"1"},"configuration":[{"key":"url","value":"http://x"},{"key":"password","encrypted_value":"enc:p"}]}}`,
	}
	codec := testCodec()
	for _, task := range tasks {
		p, err := codec.Decode(parse(t, `{"name":"p1","stages":[{"name":"s","jobs":[{"name":"j","tasks":[`+task+`]}]}]}`))
		require.NoError(t, err, task)
		d, err := taskVariants.Encode(p.Stages[0].Jobs[0].Tasks[0], nil)
		require.NoError(t, err)
		assert.JSONEq(t, task, render(t, d), task)
	}
}

func TestPluggableTaskEncryptsSecureProperties(t *testing.T) {
	p, err := testCodec().Decode(parse(t, `{"name":"p1","stages":[{"name":"s","jobs":[{"name":"j","tasks":[
	  {"type":"pluggable_task","attributes":{"plugin_configuration":{"id":"curl","version":"1"},
	   "configuration":[{"key":"url","value":"http://x"},{"key":"password","value":"hunter2"}]}}]}]}]}`))
	require.NoError(t, err)
	task := p.Stages[0].Jobs[0].Tasks[0].(*config.PluggableTask)
	require.Len(t, task.Configuration, 2)
	assert.Equal(t, "http://x", task.Configuration[0].Value)
	assert.False(t, task.Configuration[0].IsSecure())
	assert.Equal(t, "enc:hunter2", task.Configuration[1].EncryptedValue)
	assert.Empty(t, task.Configuration[1].Value)
}

func TestKillAllChildrenOnCancelIsNotRendered(t *testing.T) {
	exec := &config.ExecTask{Command: "ls"}
	exec.OnCancel = &config.KillAllChildrenTask{}
	d, err := taskVariants.Encode(exec, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"exec","attributes":{"command":"ls","working_dir":""}}`, render(t, d))
}

func TestSecureVariableEncryptedOnDecode(t *testing.T) {
	p, err := testCodec().Decode(parse(t, `{"name":"p1","environment_variables":[
	  {"secure":true,"name":"token","value":"confidential"},
	  {"secure":true,"name":"key","encrypted_value":"enc:already"},
	  {"secure":false,"name":"plain","value":"visible"}]}`))
	require.NoError(t, err)
	require.Len(t, p.Variables, 3)
	assert.Equal(t, "enc:confidential", p.Variables[0].EncryptedValue)
	assert.Empty(t, p.Variables[0].Value)
	assert.Equal(t, "enc:already", p.Variables[1].EncryptedValue)
	assert.Equal(t, "visible", p.Variables[2].Value)

	d, err := testCodec().Encode(p)
	require.NoError(t, err)
	vars, _ := d.Get("environment_variables")
	assert.JSONEq(t, `[
	  {"secure":true,"name":"token","encrypted_value":"enc:confidential"},
	  {"secure":true,"name":"key","encrypted_value":"enc:already"},
	  {"secure":false,"name":"plain","value":"visible"}]`, renderValue(t, vars))
}

func TestSecureValuesRejectedWithoutCipher(t *testing.T) {
	codec := NewCodec(nil, securePlugins{"curl/password": true})
	cases := map[string]string{
		"variable": `{"name":"p1","environment_variables":[{"secure":true,"name":"X","value":"s3cret"}]}`,
		"password": `{"name":"p1","materials":[{"type":"SvnMaterial","attributes":{"url":"http://svn","username":"bob","password":"pw"}}]}`,
		"property": `{"name":"p1","stages":[{"name":"s","jobs":[{"name":"j","tasks":[
		  {"type":"pluggable_task","attributes":{"plugin_configuration":{"id":"curl","version":"1"},
		   "configuration":[{"key":"password","value":"hunter2"}]}}]}]}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(parse(t, body))
			var unprocessable *UnprocessableEntityError
			require.True(t, errors.As(err, &unprocessable), "got %v", err)
			assert.Contains(t, unprocessable.Message, "no encryption key is configured")
		})
	}

	p, err := codec.Decode(parse(t, `{"name":"p1","environment_variables":[{"secure":true,"name":"X","encrypted_value":"enc:x"}],
	  "materials":[{"type":"SvnMaterial","attributes":{"url":"http://svn","username":"bob","encrypted_password":"enc:pw"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "enc:x", p.Variables[0].EncryptedValue)
	assert.Equal(t, "enc:pw", p.Materials[0].(*config.SvnMaterial).EncryptedPassword)
}

func TestJobSkipsEmptyTasksAndArtifacts(t *testing.T) {
	p, err := testCodec().Decode(parse(t, `{"name":"p1","stages":[{"name":"s","jobs":[{"name":"j",
	  "tasks":[{},{"type":"exec","attributes":{"command":"ls"}},{}],
	  "artifacts":[{}]}]}]}`))
	require.NoError(t, err)
	job := p.Stages[0].Jobs[0]
	require.Len(t, job.Tasks, 1)
	assert.Equal(t, "ls", job.Tasks[0].(*config.ExecTask).Command)
	assert.Empty(t, job.Artifacts)
}

func TestErrorsProjectedWithRenames(t *testing.T) {
	p := samplePipeline()
	job := p.Stages[0].Jobs[0]
	artifact := &config.Artifact{Type: config.ArtifactBuild}
	artifact.AddError("src", "Job 'defaultJob' has an artifact with an empty source")
	artifact.AddError("dest", "bad dest")
	job.Artifacts = []*config.Artifact{artifact}

	scm := &config.PluggableSCMMaterial{SCMID: ""}
	scm.AddError("scmId", "Please select a SCM")
	scm.AddError("folder", "Dest folder '/dest' is not valid. It must be a sub-directory of the working folder.")
	p.Materials = append(p.Materials, scm)

	mingle := &config.MingleConfig{BaseURL: "http://mingle"}
	mingle.AddError("baseUrl", "Should be a URL starting with https://")
	p.TrackingTool = mingle

	p.AddError("labelTemplate", config.LabelTemplateError)

	d, err := testCodec().Encode(p)
	require.NoError(t, err)
	out := render(t, d)

	assert.Contains(t, out, `"errors":{"source":["Job 'defaultJob' has an artifact with an empty source"],"destination":["bad dest"]}`)
	assert.Contains(t, out, `"errors":{"ref":["Please select a SCM"],"destination":["Dest folder '/dest' is not valid. It must be a sub-directory of the working folder."]}`)
	assert.Contains(t, out, `"errors":{"base_url":["Should be a URL starting with https://"]}`)
	errs, _ := d.Get("errors")
	assert.JSONEq(t, `{"labelTemplate":["`+config.LabelTemplateError+`"]}`, render(t, errs.(*Document)))
}

func TestNestedErrorsSuppressedWhenEmpty(t *testing.T) {
	d, err := testCodec().Encode(samplePipeline())
	require.NoError(t, err)
	out := render(t, d)
	assert.Equal(t, 1, strings.Count(out, `"errors"`))
	assert.True(t, strings.HasSuffix(out, `"errors":{}}`))
}

func TestProjectErrorsLastWriteWins(t *testing.T) {
	var errs config.Errors
	errs.Add("folder", "from folder")
	errs.Add("destination", "from destination")
	d := ProjectErrors(&errs, map[string]string{"folder": "destination"})
	assert.JSONEq(t, `{"destination":["from destination"]}`, render(t, d))
}

func TestEncodeGroupEmbedsPipelines(t *testing.T) {
	g := &config.PipelineGroup{Name: "first", Pipelines: []*config.PipelineConfig{samplePipeline()}}
	d, err := testCodec().EncodeGroup(g, NewLinkBuilder("http://test.host"))
	require.NoError(t, err)
	assert.Equal(t, []string{"_links", "name", "_embedded"}, d.Keys())
	out := render(t, d)
	assert.Contains(t, out, `"_embedded":{"pipelines":[{"_links":{"self":{"href":"http://test.host/api/admin/pipelines/wunderbar"}`)
}

func TestMarshalRoundTrip(t *testing.T) {
	codec := testCodec()
	p := samplePipeline()
	p.Timer = &config.TimerConfig{Spec: "0 0 22 ? * MON-FRI", OnlyOnChanges: true}
	p.TrackingTool = &config.ExternalTracker{Link: "http://jira/${ID}", Regex: "##(\\d+)"}
	p.Params = []*config.Param{{Name: "env", Value: "qa"}}

	data, err := codec.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "_links")

	back, err := codec.Unmarshal(data)
	require.NoError(t, err)
	again, err := codec.Marshal(back)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}
