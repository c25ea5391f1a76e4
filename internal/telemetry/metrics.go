package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	DocumentsIngested  metric.Int64Counter
	ChunkingDuration   metric.Float64Histogram
	ChunksProduced     metric.Int64Counter
	QueriesTotal       metric.Int64Counter
	SynthesisFallbacks metric.Int64Counter
	DatabaseOperations metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("engage-kb-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsIngested, err := meter.Int64Counter(
		"kb.documents.ingested",
		metric.WithDescription("Total documents accepted for ingestion"),
	)
	if err != nil {
		return nil, err
	}

	chunkingDuration, err := meter.Float64Histogram(
		"kb.chunking.duration",
		metric.WithDescription("Document chunking duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksProduced, err := meter.Int64Counter(
		"kb.chunks.produced",
		metric.WithDescription("Total chunks produced by the chunker"),
	)
	if err != nil {
		return nil, err
	}

	queriesTotal, err := meter.Int64Counter(
		"kb.queries.total",
		metric.WithDescription("Total knowledge base queries"),
	)
	if err != nil {
		return nil, err
	}

	synthesisFallbacks, err := meter.Int64Counter(
		"kb.synthesis.fallbacks",
		metric.WithDescription("Answers degraded to raw context"),
	)
	if err != nil {
		return nil, err
	}

	databaseOperations, err := meter.Int64Counter(
		"database.operations.total",
		metric.WithDescription("Total database operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		DocumentsIngested:  documentsIngested,
		ChunkingDuration:   chunkingDuration,
		ChunksProduced:     chunksProduced,
		QueriesTotal:       queriesTotal,
		SynthesisFallbacks: synthesisFallbacks,
		DatabaseOperations: databaseOperations,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordDocumentIngested records a document accepted for ingestion
func (m *Metrics) RecordDocumentIngested(kbID string) {
	attrs := []attribute.KeyValue{
		attribute.String("kb.id", kbID),
	}

	m.DocumentsIngested.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordChunking records the outcome of one chunking pass
func (m *Metrics) RecordChunking(chunks int, duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("chunking.status", status),
	}

	m.ChunkingDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	m.ChunksProduced.Add(context.Background(), int64(chunks), metric.WithAttributes(attrs...))
}

// RecordQuery records a knowledge base query
func (m *Metrics) RecordQuery(kbID string, recencyFallback bool) {
	attrs := []attribute.KeyValue{
		attribute.String("kb.id", kbID),
		attribute.Bool("retrieval.recency_fallback", recencyFallback),
	}

	m.QueriesTotal.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordSynthesisFallback records an answer degraded to raw context
func (m *Metrics) RecordSynthesisFallback() {
	attrs := []attribute.KeyValue{
		attribute.String("service", "synthesizer"),
	}

	m.SynthesisFallbacks.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordDatabaseOperation records database operation metrics
func (m *Metrics) RecordDatabaseOperation(operation, collection string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.collection", collection),
		attribute.Bool("db.success", success),
	}

	m.DatabaseOperations.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
