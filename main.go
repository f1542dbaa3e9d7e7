package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/alphachat/client/auth"
	"github.com/alphachat/client/bot"
	"github.com/alphachat/client/chat"
	"github.com/alphachat/client/config"
	"github.com/alphachat/client/conversation"
	"github.com/alphachat/client/gateway"
	"github.com/alphachat/client/health"
	"github.com/alphachat/client/logger"
	"github.com/alphachat/client/store"
	"github.com/alphachat/client/upload"
	"github.com/alphachat/client/watch"
)

// app wires the components together and acts as the single dispatcher for
// reconciliation: bot switch, conversation switch and login all funnel into
// reconcile().
type app struct {
	cfg  config.Config
	st   *store.FileStore
	gw   *gateway.Client
	auth *auth.Manager
	reg  *conversation.Registry
	orch *chat.Orchestrator
	up   *upload.Coordinator
	rl   *readline.Instance
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		DataDir: cfg.DataDir,
		DevMode: cfg.DevMode,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
	})

	st, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot open data directory:", err)
		os.Exit(1)
	}

	gw := gateway.NewClient(cfg.ServerURL, cfg.HTTPTimeout)
	a := &app{
		cfg:  cfg,
		st:   st,
		gw:   gw,
		auth: auth.NewManager(gw, st),
		reg:  conversation.NewRegistry(gw, st),
	}
	a.orch = chat.NewOrchestrator(gw, a.reg, st)
	a.up = upload.NewCoordinator(gw, st)

	a.reg.SetListener(a)
	a.orch.SetMessageListener(a)

	checker := health.NewChecker(gw, cfg.HealthInterval, a)
	checker.Start()
	defer checker.Stop()

	watcher := watch.NewStoreWatcher(cfg.DataDir, a)
	if err := watcher.Start(); err != nil {
		slog.Warn("store watcher unavailable", "error", err)
	} else {
		defer watcher.Stop()
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      a.prompt(),
		HistoryFile: filepath.Join(cfg.DataDir, "repl_history"),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot start terminal:", err)
		os.Exit(1)
	}
	defer rl.Close()
	a.rl = rl

	if u, ok := a.auth.Current(); ok {
		fmt.Printf("Sessão restaurada: %s\n", u.Username)
		a.applyUser(u)
	} else {
		fmt.Println("Use /login <usuário> para entrar. /help lista os comandos.")
	}

	a.repl()
}

func (a *app) prompt() string {
	return string(a.orch.ActiveKind()) + "> "
}

// OnActiveConversationChange implements conversation.OnChangeListener.
// Every pointer movement reconciles the active bot's log.
func (a *app) OnActiveConversationChange() {
	a.reconcile()
}

// OnMessage implements chat.MessageListener.
func (a *app) OnMessage(kind bot.Kind, msg bot.Message) {
	fmt.Printf("\n[%s] %s\n", kind, msg.Text)
	for _, s := range msg.Suggestions {
		fmt.Printf("  • %s\n", s)
	}
	if msg.Chart != nil {
		fmt.Printf("  (gráfico %s disponível: %s × %s)\n", msg.Chart.Type, msg.Chart.XAxis, msg.Chart.YAxis)
	}
}

// OnHealthChange implements health.Listener.
func (a *app) OnHealthChange(healthy bool) {
	if healthy {
		fmt.Println("\n(servidor disponível)")
	} else {
		fmt.Println("\n(servidor indisponível — as mensagens podem falhar)")
	}
}

// OnStoreChange implements watch.Listener. Another process moved the
// active-conversation pointer; converge on it. Our own writes arrive here
// too, but they match the in-memory pointer and fall through.
func (a *app) OnStoreChange(name string) {
	if name != "pointers.json" {
		return
	}
	u, ok := a.auth.Current()
	if !ok {
		return
	}
	saved, err := a.st.ActivePointer(u.ID)
	if err != nil || saved == a.reg.ActiveID() {
		return
	}
	slog.Info("active conversation changed externally", "conversationId", saved)
	a.reg.Switch(saved)
}

func (a *app) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.cfg.HTTPTimeout)
}

func (a *app) reconcile() {
	ctx, cancel := a.ctx()
	defer cancel()
	a.orch.Reconcile(ctx)
}

// applyUser switches every component to the authenticated user and loads
// the conversation list.
func (a *app) applyUser(u auth.User) {
	a.orch.SetUser(u.ID)
	a.reg.SetUser(u.ID)

	ctx, cancel := a.ctx()
	defer cancel()
	if err := a.reg.Load(ctx); err != nil {
		fmt.Println("Não foi possível carregar o histórico de conversas.")
		slog.Warn("conversation load failed", "error", err)
	}
	a.reconcile()
}

func (a *app) repl() {
	for {
		a.rl.SetPrompt(a.prompt())
		line, err := a.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			slog.Error("read failed", "error", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := a.command(line); quit {
				return
			}
			continue
		}

		ctx, cancel := a.ctx()
		a.orch.Send(ctx, line)
		cancel()
	}
}

func (a *app) command(line string) (quit bool) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		a.printHelp()
	case "/login":
		a.cmdLogin(args)
	case "/register":
		a.cmdRegister(args)
	case "/logout":
		a.auth.Logout()
		a.orch.SetUser(0)
		a.reg.SetUser(0)
		fmt.Println("Logout realizado.")
	case "/bot":
		a.cmdBot(args)
	case "/new":
		a.cmdNew(args)
	case "/list":
		a.cmdList()
	case "/switch":
		if len(args) != 1 {
			fmt.Println("uso: /switch <id>")
			break
		}
		a.reg.Switch(args[0])
	case "/rename":
		a.cmdRename(args)
	case "/delete":
		a.cmdDelete(args)
	case "/history":
		a.cmdHistory()
	case "/clear":
		a.orch.Clear()
		fmt.Println("Conversa limpa.")
	case "/upload":
		a.cmdUpload(args)
	case "/export":
		a.cmdExport()
	case "/cache":
		a.cmdCache(args)
	case "/theme":
		a.cmdTheme(args)
	default:
		fmt.Println("Comando desconhecido. /help lista os comandos.")
	}
	return false
}

func (a *app) printHelp() {
	fmt.Print(`Comandos:
  /bot <alphabot|drivebot>   troca o bot ativo
  /login <usuário>           entra (senha solicitada em seguida)
  /register <usuário>        cria uma conta
  /logout                    sai
  /new [título]              cria uma conversa para o bot ativo
  /list                      lista as conversas
  /switch <id>               ativa uma conversa
  /rename <id> <título>      renomeia uma conversa
  /delete <id>               apaga uma conversa
  /history                   mostra o log atual
  /clear                     limpa o log do bot ativo
  /upload <arquivos...>      envia planilhas para o AlphaBot
  /export                    exporta a sessão/conversa ativa
  /cache [clear]             estatísticas do cache do servidor
  /theme <claro|escuro>      preferência de tema
  /quit                      encerra
`)
}

func (a *app) readPassword() (string, error) {
	fmt.Print("Senha: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func (a *app) cmdLogin(args []string) {
	if len(args) != 1 {
		fmt.Println("uso: /login <usuário>")
		return
	}
	pw, err := a.readPassword()
	if err != nil {
		fmt.Println("Não foi possível ler a senha.")
		return
	}

	ctx, cancel := a.ctx()
	defer cancel()
	u, err := a.auth.Login(ctx, args[0], pw)
	if err != nil {
		fmt.Println("Falha no login:", err)
		return
	}
	fmt.Printf("Bem-vindo, %s!\n", u.Username)
	a.applyUser(u)
}

func (a *app) cmdRegister(args []string) {
	if len(args) != 1 {
		fmt.Println("uso: /register <usuário>")
		return
	}
	pw, err := a.readPassword()
	if err != nil {
		fmt.Println("Não foi possível ler a senha.")
		return
	}

	ctx, cancel := a.ctx()
	defer cancel()
	if err := a.auth.Register(ctx, args[0], pw); err != nil {
		fmt.Println("Falha no registro:", err)
		return
	}
	fmt.Println("Conta criada. Faça login para continuar.")
}

func (a *app) cmdBot(args []string) {
	if len(args) != 1 || !bot.Kind(args[0]).IsValid() {
		fmt.Println("uso: /bot <alphabot|drivebot>")
		return
	}
	a.orch.SelectBot(bot.Kind(args[0]))
	a.reconcile()
}

func (a *app) cmdNew(args []string) {
	title := strings.Join(args, " ")

	ctx, cancel := a.ctx()
	defer cancel()
	id, err := a.reg.Create(ctx, a.orch.ActiveKind(), title)
	if err != nil {
		fmt.Println("Não foi possível criar a conversa:", err)
		return
	}
	fmt.Println("Nova conversa:", id)
}

func (a *app) cmdList() {
	list := a.reg.List()
	if len(list) == 0 {
		fmt.Println("Nenhuma conversa. Use /new para criar.")
		return
	}
	active := a.reg.ActiveID()
	for _, c := range list {
		marker := " "
		if c.ID == active {
			marker = "*"
		}
		fmt.Printf("%s %-12s [%s] %s\n", marker, c.ID, c.BotKind, c.Title)
	}
}

func (a *app) cmdRename(args []string) {
	if len(args) < 2 {
		fmt.Println("uso: /rename <id> <título>")
		return
	}
	ctx, cancel := a.ctx()
	defer cancel()
	if err := a.reg.Rename(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
		fmt.Println("Não foi possível renomear:", err)
		return
	}
	fmt.Println("Título atualizado.")
}

func (a *app) cmdDelete(args []string) {
	if len(args) != 1 {
		fmt.Println("uso: /delete <id>")
		return
	}
	ctx, cancel := a.ctx()
	defer cancel()
	if err := a.reg.Delete(ctx, args[0]); err != nil {
		fmt.Println("Não foi possível apagar:", err)
		return
	}
	fmt.Println("Conversa apagada.")
}

func (a *app) cmdHistory() {
	msgs := a.orch.Messages()
	if len(msgs) == 0 {
		fmt.Println("(conversa vazia)")
		return
	}
	for _, m := range msgs {
		who := "você"
		if m.Author == bot.AuthorBot {
			who = string(m.Bot)
		}
		fmt.Printf("%s  %s: %s\n", m.CreatedAt.Format("15:04"), who, m.Text)
	}
}

func (a *app) cmdUpload(args []string) {
	if len(args) == 0 {
		fmt.Println("uso: /upload <arquivos...>")
		return
	}

	ctx, cancel := a.ctx()
	defer cancel()
	resp, err := a.up.Upload(ctx, a.reg.ActiveID(), args, func(pct int) {
		fmt.Printf("\rEnviando... %d%%", pct)
	})
	fmt.Println()
	if err != nil {
		fmt.Println("Falha no upload:", err)
		return
	}

	text := fmt.Sprintf("%d arquivo(s) processado(s), %d registros carregados.", resp.FilesCount, resp.TotalRows)
	a.orch.AddMessage(bot.Message{
		ID:     "b-upload-" + resp.SessionID,
		Author: bot.AuthorBot,
		Bot:    bot.KindAlpha,
		Text:   text,
	})
	for _, f := range resp.Failures {
		fmt.Printf("  falhou: %s (%s)\n", f.Filename, f.Error)
	}
}

func (a *app) cmdExport() {
	ctx, cancel := a.ctx()
	defer cancel()

	kind := a.orch.ActiveKind()
	var ref string
	if kind == bot.KindAlpha {
		ref = a.alphaSessionRef()
	} else {
		ref = a.orch.CorrelationID(bot.KindDrive)
	}
	if ref == "" {
		fmt.Println("Nada para exportar ainda.")
		return
	}

	tmp, err := os.CreateTemp(".", "export-*")
	if err != nil {
		fmt.Println("Não foi possível criar o arquivo:", err)
		return
	}
	defer tmp.Close()

	var name string
	if kind == bot.KindAlpha {
		name, err = a.gw.ExportAlpha(ctx, ref, tmp)
	} else {
		name, err = a.gw.ExportDrive(ctx, ref, tmp)
	}
	if err != nil {
		os.Remove(tmp.Name())
		fmt.Println("Falha na exportação:", err)
		return
	}

	if err := os.Rename(tmp.Name(), name); err != nil {
		fmt.Println("Exportado para", tmp.Name())
		return
	}
	fmt.Println("Exportado para", name)
}

// alphaSessionRef resolves the export reference for AlphaBot: the binding of
// the active conversation, else the global fallback.
func (a *app) alphaSessionRef() string {
	if id := a.reg.ActiveID(); id != "" {
		if ref, err := a.st.SessionBinding(id); err == nil && ref != "" {
			return ref
		}
	}
	ref, err := a.st.FallbackSession()
	if err != nil {
		return ""
	}
	return ref
}

func (a *app) cmdCache(args []string) {
	ctx, cancel := a.ctx()
	defer cancel()

	if len(args) == 1 && args[0] == "clear" {
		if err := a.gw.ClearCache(ctx); err != nil {
			fmt.Println("Não foi possível limpar o cache:", err)
			return
		}
		fmt.Println("Cache do servidor limpo.")
		return
	}

	stats, err := a.gw.CacheStats(ctx)
	if err != nil {
		fmt.Println("Não foi possível consultar o cache:", err)
		return
	}
	fmt.Printf("Cache: %d entradas, %d hits, %d misses (%.0f%%)\n",
		stats.Entries, stats.Hits, stats.Misses, stats.HitRate*100)
}

func (a *app) cmdTheme(args []string) {
	if len(args) != 1 {
		theme, _ := a.st.Theme()
		if theme == "" {
			theme = "claro"
		}
		fmt.Println("Tema atual:", theme)
		return
	}
	if err := a.st.SaveTheme(args[0]); err != nil {
		fmt.Println("Não foi possível salvar o tema:", err)
		return
	}
	fmt.Println("Tema salvo:", args[0])
}
