package config

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"

	cmtcfg "github.com/cometbft/cometbft/config"
	cmtos "github.com/cometbft/cometbft/libs/os"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0o700

var appTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("appConfigTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
	})
	if appTemplate, err = tmpl.Parse(defaultAppTemplate); err != nil {
		panic(err)
	}
}

// WriteConfigFile writes the CometBFT sections followed by the [app]
// section to configFilePath.
func WriteConfigFile(configFilePath string, config *Config) {
	cmtcfg.WriteConfigFile(configFilePath, config.Config)

	var buffer bytes.Buffer
	buffer.Write(cmtos.MustReadFile(configFilePath))
	if err := appTemplate.Execute(&buffer, config); err != nil {
		panic(err)
	}
	cmtos.MustWriteFile(configFilePath, buffer.Bytes(), 0o644)
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in AppConfig in config/config.go.
//
//go:embed app.toml.tpl
var defaultAppTemplate string
