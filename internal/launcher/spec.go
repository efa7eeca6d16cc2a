package launcher

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"

	"elamid/pkg/request"
	"elamid/pkg/runtime"
)

const (
	// AppsMountPath is where {installDir}/apps is mounted inside the container.
	AppsMountPath = "/apps"

	// ConfigEnvVar carries the serialized AppConfig for the launched process.
	ConfigEnvVar = "ELA_AI_CONFIG"

	// RunIDLabel tags the container with the run that launched it.
	RunIDLabel = "elamid.run-id"

	// OperationLabel tags the container with the requested operation.
	OperationLabel = "elamid.operation"
)

// profiles maps operations to the runtime profile baked into the image.
var profiles = map[string]string{
	"lang_check": "whisper",
	"stt":        "whisper",
	"sdz":        "pyannote",
	"nlp":        "spacy",
	"report":     "report",
}

// Profile returns the runtime profile for an operation, or "" when the
// operation has none. Unknown operations are still launched.
func Profile(operation string) string {
	return profiles[operation]
}

// AppConfig is the document passed to the assessment app in ConfigEnvVar.
type AppConfig struct {
	Host       string `json:"host"`
	Port       string `json:"port"`
	GetAPI     string `json:"get_api"`
	PutAPI     string `json:"put_api"`
	AddFileAPI string `json:"add_file_api"`
	Token      string `json:"token"`
	InstallDir string `json:"install_dir"`
	Operation  string `json:"operation"`
	Activity   string `json:"activity,omitempty"`
	AppEnv     string `json:"app_env"`
}

// Command builds the entry point invocation as discrete arguments; nothing
// goes through a shell.
func Command(req *request.RunRequest) []string {
	cmd := []string{path.Join(AppsMountPath, req.Operation, "app.py")}
	if req.Activity != "" {
		cmd = append(cmd, req.Activity)
	}
	return cmd
}

// WorkingDirectory is the operation's app directory inside the container.
func WorkingDirectory(req *request.RunRequest) string {
	return path.Join(AppsMountPath, req.Operation)
}

// Volumes binds {installDir}/apps read-write onto AppsMountPath.
func Volumes(req *request.RunRequest) map[string]string {
	return map[string]string{
		filepath.Join(req.InstallDir, "apps"): AppsMountPath,
	}
}

// Environment serializes the whole request, plus its profile, into ConfigEnvVar.
func Environment(req *request.RunRequest) (map[string]string, error) {
	data, err := json.Marshal(AppConfig{
		Host:       req.APIHost,
		Port:       req.APIPort,
		GetAPI:     req.GetAPI,
		PutAPI:     req.PutAPI,
		AddFileAPI: req.AddFileAPI,
		Token:      req.APIToken,
		InstallDir: req.InstallDir,
		Operation:  req.Operation,
		Activity:   req.Activity,
		AppEnv:     Profile(req.Operation),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize app config: %w", err)
	}
	return map[string]string{ConfigEnvVar: string(data)}, nil
}

// BuildSpec derives the full container configuration for a request.
func BuildSpec(req *request.RunRequest, opts Options, runID string) (runtime.RunOptions, error) {
	env, err := Environment(req)
	if err != nil {
		return runtime.RunOptions{}, err
	}

	return runtime.RunOptions{
		Name:             opts.ContainerName,
		Image:            req.Image,
		Command:          Command(req),
		VolumeMounts:     Volumes(req),
		EnvVars:          env,
		WorkingDirectory: WorkingDirectory(req),
		NetworkMode:      opts.NetworkMode,
		AutoRemove:       true,
		Labels: map[string]string{
			RunIDLabel:     runID,
			OperationLabel: req.Operation,
		},
	}, nil
}
