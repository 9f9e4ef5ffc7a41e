package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ClaimDocumentActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.RecordTextActivity)
	w.RegisterActivity(a.IndexDocumentActivity)
	w.RegisterActivity(a.CompleteDocumentActivity)
	w.RegisterActivity(a.FailDocumentActivity)
	w.RegisterActivity(a.DocumentStatusActivity)
}
