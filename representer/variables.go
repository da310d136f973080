package representer

import "github.com/GoCodeAlone/pipelineapi/config"

var variableRepresenter = New(
	Bool("secure",
		func(v *config.EnvironmentVariable) bool { return v.Secure },
		func(v *config.EnvironmentVariable, b bool) { v.Secure = b }),
	String("name",
		func(v *config.EnvironmentVariable) string { return v.Name },
		func(v *config.EnvironmentVariable, s string) { v.Name = s }),
	Custom("value",
		func(v *config.EnvironmentVariable, _ *Env) (any, error) { return v.Value, nil },
		func(v *config.EnvironmentVariable, raw any, env *Env) error {
			s, err := asString("value", raw, true)
			if err != nil {
				return err
			}
			return secureValueError(v.Name, v.SetPlainValue(env.cipher(), s))
		}).SkipWhen(func(v *config.EnvironmentVariable) bool { return v.Secure }),
	String("encrypted_value",
		func(v *config.EnvironmentVariable) string { return v.EncryptedValue },
		func(v *config.EnvironmentVariable, s string) {
			if s != "" {
				v.EncryptedValue = s
			}
		}).SkipWhen(func(v *config.EnvironmentVariable) bool { return !v.Secure }),
	ErrorsField[*config.EnvironmentVariable](nil).OmitEmpty(),
)

func newVariable() *config.EnvironmentVariable { return &config.EnvironmentVariable{} }

func variablesField[T any](get func(T) []*config.EnvironmentVariable, set func(T, []*config.EnvironmentVariable)) Field[T] {
	return Collection("environment_variables", get, set, newVariable, variableRepresenter)
}

var paramRepresenter = New(
	NullableString("name",
		func(p *config.Param) string { return p.Name },
		func(p *config.Param, s string) { p.Name = s }),
	String("value",
		func(p *config.Param) string { return p.Value },
		func(p *config.Param, s string) { p.Value = s }),
	ErrorsField[*config.Param](nil).OmitEmpty(),
)

func newParam() *config.Param { return &config.Param{} }

var propertyRepresenter = New(
	String("key",
		func(p *config.ConfigurationProperty) string { return p.Key },
		func(p *config.ConfigurationProperty, s string) { p.Key = s }),
	String("value",
		func(p *config.ConfigurationProperty) string { return p.Value },
		nil).SkipWhen((*config.ConfigurationProperty).IsSecure),
	String("encrypted_value",
		func(p *config.ConfigurationProperty) string { return p.EncryptedValue },
		func(p *config.ConfigurationProperty, s string) { p.EncryptedValue = s }).
		SkipWhen(func(p *config.ConfigurationProperty) bool { return !p.IsSecure() }),
	ErrorsField[*config.ConfigurationProperty](nil).OmitEmpty(),
)

// configurationField binds plugin configuration properties. Plain values of
// properties the plugin declares secure are encrypted on the way in.
func configurationField[T any](pluginID func(T) string, get func(T) []*config.ConfigurationProperty, set func(T, []*config.ConfigurationProperty)) Field[T] {
	f := Collection("configuration", get, nil, nil, propertyRepresenter)
	f.parse = func(v T, raw any, env *Env) error {
		items, err := asArray("configuration", raw)
		if err != nil {
			return err
		}
		out := make([]*config.ConfigurationProperty, 0, len(items))
		for _, it := range items {
			d, ok := it.(*Document)
			if !ok {
				return shapeError("configuration", "an object", it)
			}
			p := &config.ConfigurationProperty{}
			if err := propertyRepresenter.Decode(d, p, env); err != nil {
				return err
			}
			if rawValue, ok := d.Get("value"); ok && p.EncryptedValue == "" {
				s, err := asString("value", rawValue, true)
				if err != nil {
					return err
				}
				if err := config.SetPropertyValue(p, env.plugins(), env.cipher(), pluginID(v), s); err != nil {
					return secureValueError(p.Key, err)
				}
			}
			out = append(out, p)
		}
		set(v, out)
		return nil
	}
	return f
}

var pluginConfigurationRepresenter = New(
	String("id",
		func(p *config.PluginConfiguration) string { return p.ID },
		func(p *config.PluginConfiguration, s string) { p.ID = s }),
	String("version",
		func(p *config.PluginConfiguration) string { return p.Version },
		func(p *config.PluginConfiguration, s string) { p.Version = s }),
)
