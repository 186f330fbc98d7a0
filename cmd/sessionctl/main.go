package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"appsession/internal/api"
	"appsession/internal/config"
	"appsession/internal/session"
	"appsession/internal/tokenstore"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	storage, closeStorage, err := tokenstore.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("abrir almacenamiento de token: %v", err)
	}
	defer closeStorage()

	client := api.NewHTTPClient(cfg.APIURL, cfg.APITimeout(), logger)
	store := session.New(cfg.SessionConfig(), client, storage, logger)
	defer store.Close()

	unsubscribe := store.Subscribe(func(s session.Snapshot) {
		if s.Authenticated() {
			fmt.Printf("\n* sesion: %s (%s)\n", s.Username, s.UserID)
			return
		}
		fmt.Println("\n* sesion: anonima")
	})
	defer unsubscribe()

	if err := store.Restore(ctx); err != nil {
		logger.Warn("restore token failed", zap.Error(err))
	}
	printResponse(store.CheckAuthentication(ctx))

	title := store.Title()
	if title == "" {
		title = "appsession"
	}
	if icon := store.TitleIcon(); icon != "" {
		title = icon + " " + title
	}

	for {
		fmt.Printf("\n===== %s =====\n", title)
		fmt.Println("[1] Verificar sesion")
		fmt.Println("[2] Iniciar sesion")
		fmt.Println("[3] Cerrar sesion")
		fmt.Println("[4] Registrarse")
		fmt.Println("[5] Cambiar password")
		fmt.Println("[6] Enviar email de reset de password")
		fmt.Println("[7] Confirmar email con token")
		fmt.Println("[8] Cambiar password con token")
		fmt.Println("[9] Quien soy")
		fmt.Println("[P] Verificar permisos")
		fmt.Println("[S] Salir")
		fmt.Print("Selecciona una opcion: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		switch strings.ToUpper(strings.TrimSpace(line)) {
		case "1":
			printResponse(store.CheckAuthentication(ctx))
		case "2":
			username := prompt(reader, "Usuario o email: ")
			password := prompt(reader, "Password: ")
			printResponse(store.Signin(ctx, map[string]string{
				"username": username,
				"password": password,
			}))
		case "3":
			printResponse(store.Signout(ctx))
		case "4":
			username := prompt(reader, "Usuario: ")
			email := prompt(reader, "Email (opcional): ")
			password := prompt(reader, "Password: ")
			displayName := prompt(reader, "Nombre visible (opcional): ")
			printResponse(store.Signup(ctx, map[string]string{
				"username":     username,
				"email":        email,
				"password":     password,
				"display_name": displayName,
			}))
		case "5":
			printResponse(store.SetPassword(ctx, prompt(reader, "Nuevo password: ")))
		case "6":
			printResponse(store.SendPasswordResetEmail(ctx, prompt(reader, "Usuario o email: ")))
		case "7":
			printResponse(store.ConfirmEmailByToken(ctx, prompt(reader, "Token: ")))
		case "8":
			token := prompt(reader, "Token: ")
			password := prompt(reader, "Nuevo password: ")
			printResponse(store.SetPasswordByToken(ctx, token, password))
		case "9":
			printWhoami(store)
		case "P":
			raw := prompt(reader, "Permisos (separados por coma; *, guest, user, root o literales): ")
			names := strings.Split(raw, ",")
			for i := range names {
				names[i] = strings.TrimSpace(names[i])
			}
			fmt.Printf("HasPermissions(%s) = %v\n", strings.Join(names, ", "), store.HasPermissions(names...))
		case "S":
			return
		default:
			fmt.Println("Opcion invalida.")
		}
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func printResponse(res *api.Response) {
	if res.OK {
		fmt.Printf("OK (%s)\n", res)
		return
	}
	fmt.Printf("ERROR: %s\n", res)
	if res.IsUnauthorized() {
		fmt.Println("La sesion no es valida; inicia sesion de nuevo.")
	}
}

func printWhoami(store *session.Store) {
	snap := store.Snapshot()
	if !snap.Initialized {
		fmt.Println("Estado de sesion desconocido: el servidor todavia no respondio.")
	}
	if !snap.Authenticated() {
		fmt.Println("No hay sesion iniciada.")
		return
	}
	fmt.Printf("Usuario:  %s\n", snap.Username)
	fmt.Printf("ID:       %s\n", snap.UserID)
	fmt.Printf("Root:     %v\n", store.IsRoot())
	if snap.Avatar != "" {
		fmt.Printf("Avatar:   %s\n", snap.Avatar)
	}
	var granted []string
	for name, ok := range snap.Permissions {
		if ok {
			granted = append(granted, name)
		}
	}
	sort.Strings(granted)
	fmt.Printf("Permisos: %s\n", strings.Join(granted, ", "))
	if allow := store.SigninPermissions(); allow != nil {
		fmt.Printf("Requeridos al iniciar sesion: %s\n", strings.Join(allow, ", "))
	}
}

// newLogger arma un logger de desarrollo con el nivel de LOG_LEVEL; la salida
// va a stderr para no mezclarse con el menu.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = lvl
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}
