package workflows

import (
	"context"
	"errors"
	"testing"

	"medibot/internal/activities"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerDocumentActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ComputeDocIDActivity", func(context.Context, activities.ComputeDocIDInput) (activities.ComputeDocIDOutput, error) {
		return activities.ComputeDocIDOutput{}, nil
	})
	registerActivityName(env, "UpdateDocumentStatusActivity", func(context.Context, activities.UpdateDocumentStatusInput) error { return nil })
	registerActivityName(env, "ExtractTextActivity", func(context.Context, activities.ExtractTextInput) (activities.ExtractTextOutput, error) {
		return activities.ExtractTextOutput{}, nil
	})
	registerActivityName(env, "ChunkTextActivity", func(context.Context, activities.ChunkTextInput) (activities.ChunkTextOutput, error) {
		return activities.ChunkTextOutput{}, nil
	})
	registerActivityName(env, "EmbedChunksActivity", func(context.Context, activities.EmbedChunksInput) (activities.EmbedChunksOutput, error) {
		return activities.EmbedChunksOutput{}, nil
	})
	registerActivityName(env, "UpsertChunksActivity", func(context.Context, activities.UpsertChunksInput) (activities.UpsertChunksOutput, error) {
		return activities.UpsertChunksOutput{}, nil
	})
	registerActivityName(env, "WriteDocArtifactsActivity", func(context.Context, activities.WriteDocArtifactsInput) error { return nil })
	registerActivityName(env, "LogProviderCallActivity", func(context.Context, activities.LogProviderCallInput) error { return nil })
}

func TestDocumentProcessWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentProcessWorkflow)
	registerDocumentActivities(env)

	env.OnActivity("ComputeDocIDActivity", mock.Anything, activities.ComputeDocIDInput{DocPath: "/tmp/fever.pdf"}).Return(activities.ComputeDocIDOutput{DocID: "doc123"}, nil)
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, activities.ExtractTextInput{DocPath: "/tmp/fever.pdf"}).Return(activities.ExtractTextOutput{Text: "fever treatment guidance", Format: "pdf", Pages: 2}, nil)
	env.OnActivity("ChunkTextActivity", mock.Anything, mock.Anything).Return(activities.ChunkTextOutput{Chunks: []activities.ChunkItem{{ChunkID: "c1", DocID: "doc123", KBID: "kb", ChunkIndex: 0, Text: "chunk"}}}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1, 0.2}}, ProviderName: "mock", Model: "mock"}, nil)
	env.OnActivity("UpsertChunksActivity", mock.Anything, mock.Anything).Return(activities.UpsertChunksOutput{Upserted: 1}, nil)
	env.OnActivity("WriteDocArtifactsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogProviderCallActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(DocumentProcessWorkflow, DocumentProcessInput{KBID: "kb", DocPath: "/tmp/fever.pdf", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentProcessResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "processed", out.Status)
	require.Equal(t, "doc123", out.DocID)
	require.Equal(t, 1, out.ChunkCount)
}

func TestDocumentProcessWorkflowNoTextFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentProcessWorkflow)
	registerDocumentActivities(env)

	env.OnActivity("ComputeDocIDActivity", mock.Anything, mock.Anything).Return(activities.ComputeDocIDOutput{DocID: "doc123"}, nil)
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{}, errors.New("no extractable text found in document"))

	env.ExecuteWorkflow(DocumentProcessWorkflow, DocumentProcessInput{KBID: "kb", DocPath: "/tmp/scan.pdf", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentProcessResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out.Status)
	require.Zero(t, out.ChunkCount)
}

func TestDocumentProcessWorkflowUnsupportedFormatFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentProcessWorkflow)
	registerDocumentActivities(env)

	env.OnActivity("ComputeDocIDActivity", mock.Anything, mock.Anything).Return(activities.ComputeDocIDOutput{DocID: "doc123"}, nil)
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{}, errors.New("unsupported document format: .tiff"))

	env.ExecuteWorkflow(DocumentProcessWorkflow, DocumentProcessInput{KBID: "kb", DocPath: "/tmp/scan.tiff", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentProcessResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out.Status)
}

func TestKnowledgeBaseIngestWorkflowAggregatesChildren(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(KnowledgeBaseIngestWorkflow)
	env.RegisterWorkflow(DocumentProcessWorkflow)
	registerDocumentActivities(env)
	registerActivityName(env, "ListDocumentsActivity", func(context.Context, activities.ListDocumentsInput) (activities.ListDocumentsOutput, error) {
		return activities.ListDocumentsOutput{}, nil
	})
	registerActivityName(env, "WriteKBSummaryActivity", func(context.Context, activities.WriteKBSummaryInput) error { return nil })
	registerActivityName(env, "InvalidateAnswerCacheActivity", func(context.Context, activities.InvalidateAnswerCacheInput) error { return nil })

	env.OnActivity("ListDocumentsActivity", mock.Anything, mock.Anything).Return(activities.ListDocumentsOutput{Paths: []string{"/tmp/a.txt", "/tmp/b.txt"}}, nil)
	env.OnActivity("ComputeDocIDActivity", mock.Anything, mock.Anything).Return(activities.ComputeDocIDOutput{DocID: "doc123"}, nil)
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "body", Format: "txt"}, nil)
	env.OnActivity("ChunkTextActivity", mock.Anything, mock.Anything).Return(activities.ChunkTextOutput{Chunks: []activities.ChunkItem{{ChunkID: "c1", DocID: "doc123", KBID: "kb", Text: "chunk"}}}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1}}, ProviderName: "mock", Model: "mock"}, nil)
	env.OnActivity("UpsertChunksActivity", mock.Anything, mock.Anything).Return(activities.UpsertChunksOutput{Upserted: 1}, nil)
	env.OnActivity("WriteDocArtifactsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogProviderCallActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("InvalidateAnswerCacheActivity", mock.Anything, activities.InvalidateAnswerCacheInput{KBID: "kb"}).Return(nil)
	env.OnActivity("WriteKBSummaryActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(KnowledgeBaseIngestWorkflow, KnowledgeBaseIngestInput{KBID: "kb", InputDir: "/tmp", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "completed", out)

	v, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var prog KnowledgeBaseIngestProgress
	require.NoError(t, v.Get(&prog))
	require.Equal(t, 2, prog.Total)
	require.Equal(t, 2, prog.Done)
	require.Equal(t, 0, prog.Failed)
	require.Equal(t, 1, prog.ChunkCounts["/tmp/a.txt"])
	require.Equal(t, 1, prog.ChunkCounts["/tmp/b.txt"])
}
