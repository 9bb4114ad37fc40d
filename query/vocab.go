package query

// Synonym maps a query term to terms appended when it appears.
type Synonym struct {
	Term     string
	Synonyms []string
}

// Correction maps a common misspelling to its fix.
type Correction struct {
	Misspelling string
	Correction  string
}

// IntentPatterns lists the regular expressions that identify one intent category.
type IntentPatterns struct {
	Category string
	Patterns []string
}

// Intent categories.
const (
	IntentComparison    = "comparison"
	IntentSpecificNeed  = "specific_need"
	IntentPricing       = "pricing"
	IntentIntegration   = "integration"
	IntentIndustry      = "industry_solution"
	IntentProductSearch = "product_search"
)

var defaultSynonyms = []Synonym{
	{Term: "ai", Synonyms: []string{"artificial intelligence", "machine learning", "ml"}},
	{Term: "ml", Synonyms: []string{"machine learning", "ai"}},
	{Term: "chatbot", Synonyms: []string{"conversational ai", "virtual assistant", "bot"}},
	{Term: "crm", Synonyms: []string{"customer relationship management", "sales"}},
	{Term: "automation", Synonyms: []string{"workflow", "rpa"}},
	{Term: "analytics", Synonyms: []string{"reporting", "business intelligence", "insights"}},
	{Term: "ocr", Synonyms: []string{"text recognition", "document scanning"}},
	{Term: "nlp", Synonyms: []string{"natural language processing", "text analysis"}},
	{Term: "security", Synonyms: []string{"cybersecurity", "protection"}},
	{Term: "cloud", Synonyms: []string{"saas", "hosted"}},
}

var defaultCorrections = []Correction{
	{Misspelling: "artifical", Correction: "artificial"},
	{Misspelling: "inteligence", Correction: "intelligence"},
	{Misspelling: "machin", Correction: "machine"},
	{Misspelling: "lerning", Correction: "learning"},
	{Misspelling: "analitics", Correction: "analytics"},
	{Misspelling: "analytcs", Correction: "analytics"},
	{Misspelling: "automaton", Correction: "automation"},
	{Misspelling: "chatbott", Correction: "chatbot"},
	{Misspelling: "chat bot", Correction: "chatbot"},
	{Misspelling: "documnet", Correction: "document"},
	{Misspelling: "proccessing", Correction: "processing"},
	{Misspelling: "procesing", Correction: "processing"},
	{Misspelling: "intergration", Correction: "integration"},
	{Misspelling: "secuirty", Correction: "security"},
	{Misspelling: "managment", Correction: "management"},
}

var defaultIntents = []IntentPatterns{
	{Category: IntentComparison, Patterns: []string{
		`\bcompare\b`, `\bcomparison\b`, `\bvs\.?\b`, `\bversus\b`, `\balternatives?\b`, `\bbetter than\b`,
	}},
	{Category: IntentSpecificNeed, Patterns: []string{
		`\bi need\b`, `\blooking for\b`, `\bhelp (me )?with\b`, `\bsolution (for|to)\b`, `\bhow (can|do) i\b`,
	}},
	{Category: IntentPricing, Patterns: []string{
		`\bcheap(est)?\b`, `\baffordable\b`, `\bprice\b`, `\bpricing\b`, `\bcost\b`, `\bbudget\b`, `\bfree\b`, `\$\d`,
	}},
	{Category: IntentIntegration, Patterns: []string{
		`\bintegrat(e|es|ion|ions)\b`, `\bapi\b`, `\bconnect(or|s)?\b`, `\bplugin\b`, `\bworks with\b`,
	}},
	{Category: IntentIndustry, Patterns: []string{
		`\bfor (healthcare|finance|banking|retail|insurance|legal|education|manufacturing|logistics)\b`,
	}},
}

var defaultTechnologies = []string{
	"python", "javascript", "typescript", "java", "golang", "rust", "react", "node",
	"tensorflow", "pytorch", "kubernetes", "docker", "aws", "azure", "gcp",
	"openai", "gpt", "llm", "nlp", "ocr", "computer vision", "blockchain", "salesforce",
}

var defaultIndustries = []string{
	"healthcare", "finance", "banking", "insurance", "retail", "ecommerce", "e-commerce",
	"legal", "education", "manufacturing", "logistics", "real estate", "government",
	"telecommunications", "energy", "hospitality", "marketing",
}

var defaultUseCases = []string{
	"document processing", "customer support", "lead generation", "fraud detection",
	"data analysis", "content generation", "sentiment analysis", "invoice processing",
	"recruitment", "scheduling", "translation", "transcription", "forecasting",
	"personalization", "recommendation",
}
