package request

import "net/url"

// Query parameter names accepted by GET /run.
const (
	ParamImage      = "ela_image"
	ParamAPIHost    = "ela_api_host"
	ParamAPIPort    = "ela_api_port"
	ParamGetAPI     = "ela_get_api"
	ParamPutAPI     = "ela_put_api"
	ParamAddFileAPI = "ela_add_file_api"
	ParamAPIToken   = "ela_api_token"
	ParamInstallDir = "ela_ai_install_dir"
	ParamOperation  = "ela_ai_operation"
	ParamActivity   = "ela_activity"
)

// RunRequest is the flat parameter set describing one assessment launch.
// It's populated from the /run query string or from the CLI flags.
type RunRequest struct {
	Image      string `query:"ela_image" validate:"required"`
	APIHost    string `query:"ela_api_host" validate:"required"`
	APIPort    string `query:"ela_api_port" validate:"required,numeric"`
	GetAPI     string `query:"ela_get_api"`
	PutAPI     string `query:"ela_put_api"`
	AddFileAPI string `query:"ela_add_file_api"`
	APIToken   string `query:"ela_api_token"`
	InstallDir string `query:"ela_ai_install_dir" validate:"required,startswith=/"`
	Operation  string `query:"ela_ai_operation" validate:"required,operation"`
	Activity   string `query:"ela_activity"`
}

// FromQuery copies the known parameters out of a query string. Missing
// parameters stay empty; validation is the parser's job.
func FromQuery(values url.Values) *RunRequest {
	return &RunRequest{
		Image:      values.Get(ParamImage),
		APIHost:    values.Get(ParamAPIHost),
		APIPort:    values.Get(ParamAPIPort),
		GetAPI:     values.Get(ParamGetAPI),
		PutAPI:     values.Get(ParamPutAPI),
		AddFileAPI: values.Get(ParamAddFileAPI),
		APIToken:   values.Get(ParamAPIToken),
		InstallDir: values.Get(ParamInstallDir),
		Operation:  values.Get(ParamOperation),
		Activity:   values.Get(ParamActivity),
	}
}
