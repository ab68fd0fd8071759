package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListDocumentsActivity)
	w.RegisterActivity(a.ComputeDocIDActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.ChunkTextActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.UpsertChunksActivity)
	w.RegisterActivity(a.UpdateDocumentStatusActivity)
	w.RegisterActivity(a.WriteDocArtifactsActivity)
	w.RegisterActivity(a.WriteKBSummaryActivity)
	w.RegisterActivity(a.LogProviderCallActivity)
	w.RegisterActivity(a.InvalidateAnswerCacheActivity)
}
