package config

import (
	"errors"
	"fmt"
)

// ErrNoCipher is returned when a secure value is submitted in plain text
// and no cipher is configured to encrypt it.
var ErrNoCipher = errors.New("no cipher configured")

// Cipher encrypts and decrypts secure configuration values.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(encrypted string) (string, error)
}

// EnvironmentVariable is a pipeline, stage or job level variable. Secure
// variables only ever hold their encrypted form.
type EnvironmentVariable struct {
	errorHolder
	Name           string
	Value          string
	EncryptedValue string
	Secure         bool
}

// NewPlainVariable returns a non-secure variable.
func NewPlainVariable(name, value string) *EnvironmentVariable {
	return &EnvironmentVariable{Name: name, Value: value}
}

// NewSecureVariable encrypts value with c and returns a secure variable.
func NewSecureVariable(c Cipher, name, value string) (*EnvironmentVariable, error) {
	v := &EnvironmentVariable{Name: name, Secure: true}
	if err := v.SetPlainValue(c, value); err != nil {
		return nil, err
	}
	return v, nil
}

// SetPlainValue stores value, encrypting it when the variable is secure.
func (v *EnvironmentVariable) SetPlainValue(c Cipher, value string) error {
	if !v.Secure {
		v.Value = value
		v.EncryptedValue = ""
		return nil
	}
	if c == nil {
		return fmt.Errorf("secure variable %q: %w", v.Name, ErrNoCipher)
	}
	enc, err := c.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt variable %q: %w", v.Name, err)
	}
	v.Value = ""
	v.EncryptedValue = enc
	return nil
}

// Param is a pipeline parameter, referenced as #{name}.
type Param struct {
	errorHolder
	Name  string
	Value string
}

// ConfigurationProperty is a plugin-defined key/value pair. Secure properties
// keep only the encrypted value.
type ConfigurationProperty struct {
	errorHolder
	Key            string
	Value          string
	EncryptedValue string
}

// IsSecure reports whether the property holds an encrypted value.
func (p *ConfigurationProperty) IsSecure() bool { return p.EncryptedValue != "" }

// PluginConfiguration identifies the plugin a task or SCM is bound to.
type PluginConfiguration struct {
	ID      string
	Version string
}

// PluginSecurity tells whether a property of a plugin is marked secure.
type PluginSecurity interface {
	IsSecure(pluginID, key string) bool
}

// SetPropertyValue fills p from a submitted plain value, encrypting it when
// the plugin declares the key secure. Unknown plugins are treated as non-secure.
func SetPropertyValue(p *ConfigurationProperty, plugins PluginSecurity, c Cipher, pluginID, value string) error {
	if plugins == nil || !plugins.IsSecure(pluginID, p.Key) {
		p.Value = value
		return nil
	}
	if c == nil {
		return fmt.Errorf("secure property %q: %w", p.Key, ErrNoCipher)
	}
	enc, err := c.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt property %q: %w", p.Key, err)
	}
	p.Value = ""
	p.EncryptedValue = enc
	return nil
}
