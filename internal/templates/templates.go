// Package templates renders the configuration artifacts groundwork
// writes onto provisioned hosts. Every render is a pure function of its
// data struct: same input, same bytes. Downstream services depend on
// the exact shape of these files, so changes here are breaking.
package templates

import (
	"bytes"
	"text/template"
)

func render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// NginxSiteData contains data for the nginx server block template.
type NginxSiteData struct {
	ServerName  string
	ListenPort  int
	BackendPort int
}

// nginxSiteTemplateStr proxies the four backend path prefixes to the
// local API port. Nginx's own $variables pass through text/template
// untouched.
const nginxSiteTemplateStr = `server {
    listen {{.ListenPort}};
    server_name {{.ServerName}};

    location /api {
        proxy_pass http://127.0.0.1:{{.BackendPort}};
        proxy_http_version 1.1;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }

    location /health {
        proxy_pass http://127.0.0.1:{{.BackendPort}};
        proxy_http_version 1.1;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }

    location /metrics {
        proxy_pass http://127.0.0.1:{{.BackendPort}};
        proxy_http_version 1.1;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }

    location /static {
        proxy_pass http://127.0.0.1:{{.BackendPort}};
        proxy_http_version 1.1;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
}
`

// GenerateNginxSite generates an nginx server block from the template.
func GenerateNginxSite(data NginxSiteData) (string, error) {
	return render("nginx-site", nginxSiteTemplateStr, data)
}

// SystemdUnitData contains data for the systemd unit template.
type SystemdUnitData struct {
	Description      string
	User             string
	WorkingDirectory string
	EnvironmentFile  string
	ExecStart        string
}

const systemdUnitTemplateStr = `[Unit]
Description={{.Description}}
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
User={{.User}}
WorkingDirectory={{.WorkingDirectory}}
{{if .EnvironmentFile}}EnvironmentFile={{.EnvironmentFile}}
{{end}}ExecStart={{.ExecStart}}
Restart=always
RestartSec=10

[Install]
WantedBy=multi-user.target
`

// GenerateSystemdUnit generates a systemd service unit from the template.
func GenerateSystemdUnit(data SystemdUnitData) (string, error) {
	return render("systemd-unit", systemdUnitTemplateStr, data)
}

// ComposeFileData contains data for the docker-compose template.
type ComposeFileData struct {
	Image   string
	APIPort int
	Network string
	EnvFile string
}

// composeFileTemplateStr expects the named network to exist already;
// the docker provider creates it as a bridge network before compose
// runs. The api port binds loopback only because nginx fronts it.
const composeFileTemplateStr = `services:
  api:
    image: {{.Image}}
    restart: unless-stopped
    env_file:
      - {{.EnvFile}}
    ports:
      - "127.0.0.1:{{.APIPort}}:{{.APIPort}}"
    depends_on:
      - redis
    networks:
      - {{.Network}}

  worker:
    image: {{.Image}}
    command: worker
    restart: unless-stopped
    env_file:
      - {{.EnvFile}}
    depends_on:
      - redis
    networks:
      - {{.Network}}

  redis:
    image: redis:7-alpine
    restart: unless-stopped
    volumes:
      - redis-data:/data
    networks:
      - {{.Network}}

networks:
  {{.Network}}:
    external: true

volumes:
  redis-data:
`

// GenerateComposeFile generates a docker-compose file from the template.
func GenerateComposeFile(data ComposeFileData) (string, error) {
	return render("compose-file", composeFileTemplateStr, data)
}

// ComposeServices returns the service names the compose template
// defines. The docker provider checks these are running to decide
// whether the stack is converged.
func ComposeServices() []string {
	return []string{"api", "worker", "redis"}
}

// EnvFileData contains data for the production env file template.
//
// Secret fields arrive here already revealed. This is the one place
// secret material is allowed to leave the Secret type: the rendered
// file is the delivery mechanism the backend reads at startup.
type EnvFileData struct {
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	APIPort     int
	Environment string
	AWSRegion   string
	LogLevel    string
}

const envFileTemplateStr = `DATABASE_URL={{.DatabaseURL}}
REDIS_URL={{.RedisURL}}
JWT_SECRET={{.JWTSecret}}
API_PORT={{.APIPort}}
ENVIRONMENT={{.Environment}}
AWS_REGION={{.AWSRegion}}
LOG_LEVEL={{.LogLevel}}
`

// GenerateEnvFile generates the production environment file from the template.
func GenerateEnvFile(data EnvFileData) (string, error) {
	return render("env-file", envFileTemplateStr, data)
}
