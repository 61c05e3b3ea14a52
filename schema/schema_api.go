package schema

// PredictRequest is the body of POST /api/v1/predict.
type PredictRequest struct {
	CommitHash    string   `json:"commit_hash" validate:"required,min=4,max=64"`
	RepositoryURL string   `json:"repository_url" validate:"required"`
	ChangedFiles  []string `json:"changed_files,omitempty" validate:"omitempty,dive,required"`
}

// PredictResponse is the reply of POST /api/v1/predict.
type PredictResponse struct {
	SelectedTests    []string `json:"selected_tests"`
	PredictionTimeMs float64  `json:"prediction_time_ms"`
	ModelVersion     string   `json:"model_version"`
	Degraded         bool     `json:"degraded"`
	RequestID        string   `json:"request_id"`
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	ModelStatus string `json:"model_status"`
}

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ChangeContext describes a change under evaluation, gathered from git, a
// CI provider, or a patch file.
type ChangeContext struct {
	CommitHash   string   `json:"commit_hash"`
	Author       string   `json:"author"`
	Message      string   `json:"message"`
	Insertions   int      `json:"insertions"`
	Deletions    int      `json:"deletions"`
	ChangedFiles []string `json:"changed_files"`
}

// Churn is the number of lines touched by the change.
func (c ChangeContext) Churn() int {
	return c.Insertions + c.Deletions
}
