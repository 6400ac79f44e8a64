package models

const (
	MetadataFileName = "metadata.json"
	IndexFileName    = "index.gob"
	ManifestFileName = "index.json"
	CollectionName   = "pdf_chunks"
	ContextSeparator = "\n---\n"

	DimensionProbeText = "dimension check"
)

const (
	MissingKeyMessage        = "RAG unavailable: please set your OPENAI_API_KEY in Settings."
	NoDocumentsMessage       = "RAG unavailable: please add PDFs to the knowledge base and rebuild the index."
	NotReadyMessage          = "RAG not ready. Please check Settings and the knowledge base."
	IncompatibleIndexMessage = "RAG unavailable: the index was built with a different embedding model. Please rebuild the index."
	ErrorAnswerFormat        = "(RAG error: %v)"
	EmptyAnswerMessage       = "(no answer returned)"
)

var (
	SystemPromptTemplate = `You are an assistant for geotechnical construction questions.
Answer using the context passages below. Cite passages by their [source p.page] label.
If the context does not contain the answer, say that you don't know.

Context:
%s`

	PassageTemplate = "[%s p.%d]\n%s"
)
