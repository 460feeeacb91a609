package search

// 协作者 system prompt。改写 prompt 按检索器名区分，便于针对
// 词法/向量/网页后端产出不同风格的查询。

const extractSystemPrompt = `You are a research assistant. ` +
	`Break the user's question into the minimal list of self-contained pieces of information ` +
	`needed to answer it. Reply with a numbered list where each item has the form "[n] <information need>". ` +
	`If the question is already atomic, reply with a single item.`

const verifySystemPrompt = `You judge whether the given contexts contain enough information ` +
	`to cover the given topic. Reply with "yes" if they do, otherwise reply with "no". ` +
	`Do not explain.`

const summarySystemPrompt = `Summarize the information in the context that is relevant to the question. ` +
	`Keep facts, names, numbers and dates. If the context has nothing relevant to the question, ` +
	`reply exactly "No relevant information".`

const generateSystemPrompt = `Answer the question based on the given contexts. ` +
	`Note that some contexts may be irrelevant. Answer concisely.`

const defaultRewriteSystemPrompt = `Rewrite the given information need into one effective search query. ` +
	`Reply with the query only.`

// rewriteSystemPrompts 检索器特定的改写 prompt，未命中走 default。
var rewriteSystemPrompts = map[string]string{
	"opensearch": `Rewrite the given information need into one keyword query for a lexical (BM25) ` +
		`search engine. Prefer distinctive content words, drop stop words. Reply with the query only.`,
	"qdrant": `Rewrite the given information need into one natural-language query for a dense ` +
		`vector search engine. A full sentence close to how the answer would be phrased works best. ` +
		`Reply with the query only.`,
	"duckduckgo": `Rewrite the given information need into one web search query as a person would ` +
		`type it into a search engine. Reply with the query only.`,
}

func rewriteSystemPrompt(retriever string) string {
	if p, ok := rewriteSystemPrompts[retriever]; ok {
		return p
	}
	return defaultRewriteSystemPrompt
}
