package profile

import "github.com/springsconnect/springs/internal/config"

const DefaultName = "main"

// Resolve determines the active profile name using precedence:
// 1. flagOverride (--profile flag)
// 2. config.toml default_profile
// 3. "main"
//
// The result is normalized with NormalizeName.
func Resolve(flagOverride string) string {
	if name := NormalizeName(flagOverride); name != "" {
		return name
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil {
		if name := NormalizeName(cfg.DefaultProfile); name != "" {
			return name
		}
	}
	return DefaultName
}

// Load resolves name and reads its settings from the config file, the
// global .env, a local .env and the process environment.
func Load(flagOverride string) (string, config.Profile, error) {
	name := Resolve(flagOverride)
	if err := ValidateName(name); err != nil {
		return "", config.Profile{}, err
	}
	p, err := config.LoadProfile(ConfigPath(), name, EnvPath(), ".env")
	if err != nil {
		return "", config.Profile{}, err
	}
	return name, p, nil
}
