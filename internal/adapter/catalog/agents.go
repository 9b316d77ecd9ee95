package catalog

import "mindhub/internal/domain"

// AgentRegistry is the built-in roster of agent profiles. It implements
// domain.AgentRegistry over an immutable table.
type AgentRegistry struct {
	profiles map[domain.AgentType]domain.AgentProfile
	order    []domain.AgentType
}

// NewAgentRegistry builds the registry with every built-in agent profile.
func NewAgentRegistry() *AgentRegistry {
	r := &AgentRegistry{profiles: make(map[domain.AgentType]domain.AgentProfile)}
	for _, p := range builtinAgents() {
		r.profiles[p.Type] = p
		r.order = append(r.order, p.Type)
	}
	return r
}

// Profile returns the profile for an agent type.
func (r *AgentRegistry) Profile(t domain.AgentType) (domain.AgentProfile, bool) {
	p, ok := r.profiles[t]
	return p, ok
}

// Types returns all registered agent types in registration order.
func (r *AgentRegistry) Types() []domain.AgentType {
	out := make([]domain.AgentType, len(r.order))
	copy(out, r.order)
	return out
}

func builtinAgents() []domain.AgentProfile {
	return []domain.AgentProfile{
		{
			Type:           domain.AgentGenerate,
			Name:           "Gerador Neural",
			Description:    "Gera ideias criativas e conceitos originais com brainstorming avançado",
			DefaultTier:    domain.TierBalanced,
			MaxTokens:      4096,
			Temperature:    0.8,
			RequiredTools:  []string{"create_nodes", "create_edges"},
			OptionalTools:  []string{"search_web", "analyze_map"},
			BaseComplexity: 30,
			ForceTools:     true,
		},
		{
			Type:           domain.AgentExpand,
			Name:           "Expansor Neural",
			Description:    "Aprofunda conceitos com ramificações inteligentes e sub-ideias contextuais",
			DefaultTier:    domain.TierBalanced,
			MaxTokens:      4096,
			Temperature:    0.7,
			RequiredTools:  []string{"create_nodes", "create_edges"},
			OptionalTools:  []string{"analyze_map", "search_web"},
			BaseComplexity: 35,
			ForceTools:     true,
		},
		{
			Type:           domain.AgentSummarize,
			Name:           "Sintetizador",
			Description:    "Sintetiza informações complexas em resumos claros e acionáveis",
			DefaultTier:    domain.TierBalanced,
			MaxTokens:      4096,
			Temperature:    0.3,
			RequiredTools:  []string{"update_node"},
			OptionalTools:  []string{},
			BaseComplexity: 25,
		},
		{
			Type:           domain.AgentAnalyze,
			Name:           "Analisador Profundo",
			Description:    "Analisa padrões, lacunas, SWOT e conexões ocultas no mapa mental",
			DefaultTier:    domain.TierAdvanced,
			MaxTokens:      8192,
			Temperature:    0.4,
			RequiredTools:  []string{"analyze_map", "find_patterns"},
			OptionalTools:  []string{"create_edges", "search_web"},
			BaseComplexity: 60,
		},
		{
			Type:           domain.AgentOrganize,
			Name:           "Organizador Inteligente",
			Description:    "Reestrutura e organiza o mapa com clustering automático e layout otimizado",
			DefaultTier:    domain.TierBalanced,
			MaxTokens:      4096,
			Temperature:    0.2,
			RequiredTools:  []string{"reorganize_map", "create_clusters", "update_layout"},
			OptionalTools:  []string{"analyze_map"},
			BaseComplexity: 40,
			ForceTools:     true,
		},
		{
			Type:           domain.AgentResearch,
			Name:           "Pesquisador",
			Description:    "Pesquisa na web e agrega conhecimento externo ao mapa com citações",
			DefaultTier:    domain.TierAdvanced,
			MaxTokens:      8192,
			Temperature:    0.5,
			RequiredTools:  []string{"search_web", "create_nodes"},
			OptionalTools:  []string{"create_edges", "add_citations"},
			BaseComplexity: 65,
			ForceTools:     true,
		},
		{
			Type:           domain.AgentHypothesize,
			Name:           "Gerador de Hipóteses",
			Description:    "Gera hipóteses testáveis, cenários alternativos e análise what-if",
			DefaultTier:    domain.TierAdvanced,
			MaxTokens:      6144,
			Temperature:    0.8,
			TopP:           0.95,
			RequiredTools:  []string{"create_nodes", "create_edges"},
			OptionalTools:  []string{"analyze_map", "search_web"},
			BaseComplexity: 55,
			ForceTools:     true,
		},
		{
			Type:           domain.AgentTaskConvert,
			Name:           "Conversor de Tarefas",
			Description:    "Transforma conceitos em tarefas acionáveis com priorização e estimativas",
			DefaultTier:    domain.TierBalanced,
			MaxTokens:      4096,
			Temperature:    0.3,
			RequiredTools:  []string{"create_tasks"},
			OptionalTools:  []string{"analyze_map"},
			BaseComplexity: 30,
			ForceTools:     true,
		},
		{
			Type:           domain.AgentChat,
			Name:           "NeuralAgent",
			Description:    "Assistente conversacional inteligente com visão completa do mapa mental",
			DefaultTier:    domain.TierBalanced,
			MaxTokens:      4096,
			Temperature:    0.7,
			RequiredTools:  []string{},
			OptionalTools:  []string{"analyze_map", "create_nodes", "search_web", "create_tasks"},
			BaseComplexity: 15,
		},
		{
			Type:           domain.AgentCritique,
			Name:           "Crítico Analítico",
			Description:    "Análise crítica construtiva com sugestões de melhoria fundamentadas",
			DefaultTier:    domain.TierAdvanced,
			MaxTokens:      6144,
			Temperature:    0.4,
			RequiredTools:  []string{"analyze_map"},
			OptionalTools:  []string{"search_web", "create_nodes"},
			BaseComplexity: 55,
		},
		{
			Type:           domain.AgentConnect,
			Name:           "Conector Neural",
			Description:    "Descobre conexões ocultas e relações não-óbvias entre conceitos",
			DefaultTier:    domain.TierAdvanced,
			MaxTokens:      4096,
			Temperature:    0.6,
			RequiredTools:  []string{"create_edges", "analyze_map"},
			OptionalTools:  []string{"search_web"},
			BaseComplexity: 50,
			ForceTools:     true,
		},
		{
			Type:           domain.AgentVisualize,
			Name:           "Visualizador",
			Description:    "Sugere melhorias visuais, cores, ícones e layouts otimizados",
			DefaultTier:    domain.TierBalanced,
			MaxTokens:      4096,
			Temperature:    0.5,
			RequiredTools:  []string{"update_layout", "update_node"},
			OptionalTools:  []string{"analyze_map"},
			BaseComplexity: 25,
			ForceTools:     true,
		},
	}
}
