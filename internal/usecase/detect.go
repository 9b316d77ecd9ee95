package usecase

import (
	"regexp"
	"strings"

	"mindhub/internal/domain"
)

// agentPatterns maps message patterns to agent types. Order matters:
// the first match wins, so more specific intents come first.
var agentPatterns = []struct {
	re    *regexp.Regexp
	agent domain.AgentType
}{
	{regexp.MustCompile(`gerar?\s+(ideia|conceito|nó|sugest)`), domain.AgentGenerate},
	{regexp.MustCompile(`expand|aprofund|detalh|mais\s+sobre`), domain.AgentExpand},
	{regexp.MustCompile(`resum|sintetiz|sumari`), domain.AgentSummarize},
	{regexp.MustCompile(`analis|avali|examin|diagnos|mapeamento`), domain.AgentAnalyze},
	{regexp.MustCompile(`organiz|estrutur|reestru|reorgan|arrum`), domain.AgentOrganize},
	{regexp.MustCompile(`pesquis|buscar?|investigar?|fontes?`), domain.AgentResearch},
	{regexp.MustCompile(`hipótes|cenário|possibilidade|e\s+se|what.?if`), domain.AgentHypothesize},
	{regexp.MustCompile(`tarefa|task|ação|todo|checklist|planej`), domain.AgentTaskConvert},
	{regexp.MustCompile(`crít|review|avaliação|feedback|melhor`), domain.AgentCritique},
	{regexp.MustCompile(`conex|relação|link|associa|interdep`), domain.AgentConnect},
	{regexp.MustCompile(`visual|layout|design|cor|ícone|aparência`), domain.AgentVisualize},
}

// DetectAgentType picks the best agent for a free-form message.
// Falls back to chat when no intent pattern matches.
func DetectAgentType(message string) domain.AgentType {
	msg := strings.ToLower(message)
	for _, p := range agentPatterns {
		if p.re.MatchString(msg) {
			return p.agent
		}
	}
	return domain.AgentChat
}
