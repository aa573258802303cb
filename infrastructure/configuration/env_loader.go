package configuration

import (
	"bufio"
	"os"
	"strings"

	"crm-social/infrastructure/logger"
)

// LoadEnvFromFile sets KEY=VALUE pairs from the given files (config.env, .env)
// without overriding variables already present in the environment. Missing
// files are skipped. Lines may carry an `export ` prefix; unquoted values end
// at ` #`.
func LoadEnvFromFile(paths ...string) {
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		n := 0
		for scanner.Scan() {
			key, val, ok := parseEnvLine(scanner.Text())
			if !ok {
				continue
			}
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
				n++
			}
		}
		if err := scanner.Err(); err != nil {
			logger.GetLogger().WithField("file", p).WithField("error", err).Warn("env file read stopped early")
		}
		_ = f.Close()
		logger.GetLogger().WithField("file", p).WithField("count", n).Debug("env file loaded")
	}
}

func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")
	key, val, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}
	val = strings.TrimSpace(val)
	if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[len(val)-1] == val[0] {
		return key, val[1 : len(val)-1], true
	}
	if i := strings.Index(val, " #"); i >= 0 {
		val = strings.TrimSpace(val[:i])
	}
	return key, val, true
}
