package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/paylane-labs/agent-swarm/agent/coordinator"
	"github.com/paylane-labs/agent-swarm/agent/guard"
	"github.com/paylane-labs/agent-swarm/agent/pipeline"
	"github.com/paylane-labs/agent-swarm/agent/prompt"
	"github.com/paylane-labs/agent-swarm/agent/responder"
	"github.com/paylane-labs/agent-swarm/agent/router"
	"github.com/paylane-labs/agent-swarm/agent/session"
	"github.com/paylane-labs/agent-swarm/agent/synth"
	"github.com/paylane-labs/agent-swarm/pkg/config"
	"github.com/paylane-labs/agent-swarm/pkg/llm"
	logx "github.com/paylane-labs/agent-swarm/pkg/logger"
	"github.com/paylane-labs/agent-swarm/pkg/tavily"
	"github.com/paylane-labs/agent-swarm/server"
	"github.com/paylane-labs/agent-swarm/store/postgres"
	"github.com/paylane-labs/agent-swarm/store/retrieval"
)

const (
	knowledgeCallTimeout = 20 * time.Second
	supportCallTimeout   = 10 * time.Second
)

func main() {
	logx.Init(*config.MustNew[logx.Config]("LOGGER"))

	llmConf := config.MustNew[llm.Config]("LLM")
	dbConf := config.MustNew[postgres.Config]("DB")
	tavilyConf := config.MustNew[tavily.Config]("TAVILY")
	sessionConf := config.MustNew[session.Config]("SESSION")
	httpConf := config.MustNew[server.Config]("HTTP")

	db, err := postgres.Connect(*dbConf)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer db.Close()

	accounts, err := postgres.NewAccountStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("init account store")
	}

	embedClient, err := llm.NewClient(*llmConf)
	if err != nil {
		log.Fatal().Err(err).Msg("init embedding client")
	}
	documents, err := retrieval.NewStore(db, embedClient)
	if err != nil {
		log.Fatal().Err(err).Msg("init retrieval store")
	}

	web, err := tavily.NewClient(*tavilyConf)
	if err != nil {
		log.Fatal().Err(err).Msg("init tavily client")
	}

	sessions := session.New(*sessionConf)
	defer sessions.Close()

	prompts := prompt.Load()

	gate, err := guard.New(mustModel(llmConf.ForRole(llm.RoleGuard)), prompts.Guardrail)
	if err != nil {
		log.Fatal().Err(err).Msg("init guard")
	}
	classifier, err := router.New(mustModel(llmConf.ForRole(llm.RoleRouter)), prompts.Router)
	if err != nil {
		log.Fatal().Err(err).Msg("init router")
	}
	knowledge, err := responder.NewKnowledge(
		mustModel(llmConf.ForRole(llm.RoleKnowledge)), documents, web, prompts.Knowledge, knowledgeCallTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("init knowledge responder")
	}
	support, err := responder.NewSupport(
		mustModel(llmConf.ForRole(llm.RoleSupport)), accounts, sessions, prompts.Support, supportCallTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("init support responder")
	}
	coord, err := coordinator.New(knowledge, support)
	if err != nil {
		log.Fatal().Err(err).Msg("init coordinator")
	}
	synthesizer, err := synth.New(mustModel(llmConf.ForRole(llm.RoleSynthesizer)), prompts.Synthesizer)
	if err != nil {
		log.Fatal().Err(err).Msg("init synthesizer")
	}

	flow, err := pipeline.New(gate, classifier, coord, synthesizer, sessions)
	if err != nil {
		log.Fatal().Err(err).Msg("init pipeline")
	}

	srv, err := server.New(*httpConf, flow, accounts)
	if err != nil {
		log.Fatal().Err(err).Msg("init http server")
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info().Msg("shutdown signal received")
		if err := srv.Shutdown(); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}

func mustModel(cfg llm.Config) *llm.Client {
	client, err := llm.NewClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init llm client")
	}
	return client
}
