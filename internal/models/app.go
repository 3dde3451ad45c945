package models

import "time"

/**
 * App specification (apps.json)
 * @property {string} name - App instance name, unique within the registry
 * @property {string} friendly - Display name, defaults to title-cased name
 * @property {string} scope - Game scope, groups instances of the same game
 * @property {string} directory - Working directory of the game server
 * @property {string} command - Launch command
 * @property {[]string} args - Launch arguments
 * @property {string} processName - Process name used by the stray-process scan
 * @property {[]string} processCmd - Command-line fragments used by the stray-process scan
 * @property {string} adapter - Game adapter: sevendays/factorio/plain
 * @property {string} protocol - Admin protocol: rcon/telnet/none
 * @property {string} passwordEnv - Environment variable holding the admin password
 * @property {string} serverLog - Externally written server log file, tailed instead of stdout when set
 * @property {string} chatChannel - Chat platform channel bound to this app
 * @property {string} chatIgnore - Chat lines starting with this prefix are not relayed
 * @property {map} formats - Per-app overrides for generic event templates
 */
type AppSpec struct {
	Name        string            `json:"name"`
	Friendly    string            `json:"friendly,omitempty"`
	Scope       string            `json:"scope,omitempty"`
	Directory   string            `json:"directory"`
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	ProcessName string            `json:"processName"`
	ProcessCmd  []string          `json:"processCmd,omitempty"`
	Adapter     string            `json:"adapter,omitempty"`
	Protocol    string            `json:"protocol,omitempty"`
	Host        string            `json:"host,omitempty"`
	Port        int               `json:"port,omitempty"`
	PasswordEnv string            `json:"passwordEnv,omitempty"`
	Prefix      string            `json:"prefix,omitempty"`
	Suffix      string            `json:"suffix,omitempty"`
	ServerLog   string            `json:"serverLog,omitempty"`
	ChatChannel string            `json:"chatChannel,omitempty"`
	ChatIgnore  string            `json:"chatIgnore,omitempty"`
	Enabled     bool              `json:"enabled"`
	Formats     map[string]string `json:"formats,omitempty"`
}

/**
 * App registry specification (apps.json)
 * @property {string} configuration - Configuration format version
 * @property {[]AppSpec} apps - App instance specifications
 */
type AppsSpecification struct {
	Configuration string    `json:"configuration"`
	Apps          []AppSpec `json:"apps"`
}

type AppDetail struct {
	Name       string        `json:"name"`
	Friendly   string        `json:"friendly"`
	Scope      string        `json:"scope"`
	Status     RunStatus     `json:"status"`
	Enabled    bool          `json:"enabled"`
	Current    bool          `json:"current"`
	Pid        int           `json:"pid"`
	StartTime  time.Time     `json:"startTime"`
	PlayerInfo *PlayerCount  `json:"players,omitempty"`
	Process    ProcessDetail `json:"process"`
}

// PlayerCount 在线人数，查询不到时为nil("unknown")
type PlayerCount struct {
	Online int `json:"online"`
	Max    int `json:"max"`
}
