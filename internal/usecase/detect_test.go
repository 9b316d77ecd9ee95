package usecase

import (
	"testing"

	"mindhub/internal/domain"
)

func TestDetectAgentType(t *testing.T) {
	tests := []struct {
		message string
		want    domain.AgentType
	}{
		{"gerar ideias sobre marketing digital", domain.AgentGenerate},
		{"gerar sugestões para o mapa", domain.AgentGenerate},
		{"expanda este conceito", domain.AgentExpand},
		{"me conte mais sobre este nó", domain.AgentExpand},
		{"resuma o mapa para mim", domain.AgentSummarize},
		{"sintetize os pontos principais", domain.AgentSummarize},
		{"analise a estrutura atual", domain.AgentAnalyze},
		{"faça um diagnóstico do projeto", domain.AgentAnalyze},
		{"organize os nós por tema", domain.AgentOrganize},
		{"pesquise fontes sobre o assunto", domain.AgentResearch},
		{"quais hipóteses explicam isso?", domain.AgentHypothesize},
		{"e se o mercado mudar?", domain.AgentHypothesize},
		{"crie um checklist de ações", domain.AgentTaskConvert},
		{"quero um feedback do mapa", domain.AgentCritique},
		{"mostre as conexões entre os temas", domain.AgentConnect},
		{"mude o layout e as cores", domain.AgentVisualize},
		{"bom dia, tudo bem?", domain.AgentChat},
		{"", domain.AgentChat},
	}
	for _, tt := range tests {
		if got := DetectAgentType(tt.message); got != tt.want {
			t.Errorf("DetectAgentType(%q) = %s, want %s", tt.message, got, tt.want)
		}
	}
}

func TestDetectAgentTypeIsCaseInsensitive(t *testing.T) {
	if got := DetectAgentType("RESUMA O MAPA"); got != domain.AgentSummarize {
		t.Errorf("got %s, want summarize", got)
	}
}

func TestDetectAgentTypeFirstMatchWins(t *testing.T) {
	// "expandir e analisar" matches both expand and analyze; expand comes
	// first in the rule table.
	if got := DetectAgentType("expandir e analisar o mapa"); got != domain.AgentExpand {
		t.Errorf("got %s, want expand", got)
	}
}
