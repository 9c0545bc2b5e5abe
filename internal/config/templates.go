package config

import (
	"fmt"
	"os"
)

func Template() string {
	return clientTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(clientTemplate), 0o600)
}

const clientTemplate = `# heimdallr client tuning; every key is optional.
poll_timeout = "32s"
poll_interval = "500ms"
lock_wait = "10s"
lock_interval = "500ms"
rpc_timeout = "10s"
max_endpoint_retries = 3
log_level = "debug"
# metrics_textfile = "/var/lib/node_exporter/textfile/heimdallr.prom"
`
