package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/jrsteele09/go-oauth2-server/auth"
	fakeclientrepo "github.com/jrsteele09/go-oauth2-server/clients/fakerepo"
	"github.com/jrsteele09/go-oauth2-server/events"
	"github.com/jrsteele09/go-oauth2-server/grant"
	"github.com/jrsteele09/go-oauth2-server/instrumentation"
	"github.com/jrsteele09/go-oauth2-server/internal/config"
	"github.com/jrsteele09/go-oauth2-server/resource"
	scoperepofake "github.com/jrsteele09/go-oauth2-server/scopes/repofake"
	"github.com/jrsteele09/go-oauth2-server/server"
	"github.com/jrsteele09/go-oauth2-server/storage/redisstore"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/token/crypt"
	"github.com/jrsteele09/go-oauth2-server/token/keys"
	tokenfakerepo "github.com/jrsteele09/go-oauth2-server/token/repofake"
	fakeuserrepo "github.com/jrsteele09/go-oauth2-server/users/repofake"
)

const (
	shutdownTimeout       = 5 * time.Second
	memoryCleanupInterval = time.Minute
)

// tokenStore is satisfied by both the Redis store and the in-memory fake.
type tokenStore interface {
	token.AccessTokenRepo
	token.RefreshTokenRepo
	token.AuthCodeRepo
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New(os.Getenv("OAUTH_CONFIG_FILE"))
	if err != nil {
		return err
	}
	setLogLevel(c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, closeStorage, err := newHandler(ctx, c)
	if err != nil {
		return err
	}
	defer closeStorage()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

func newHandler(ctx context.Context, c config.Config) (http.Handler, func(), error) {
	keyPair, err := loadKeyPair(c)
	if err != nil {
		return nil, nil, err
	}
	encrypter, err := newEncrypter(c)
	if err != nil {
		return nil, nil, err
	}
	tokens, closeStorage, err := newTokenStore(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	clientRepo := fakeclientrepo.NewFakeClientRepo()
	scopeRepo := scoperepofake.NewFakeScopeRepo()
	userRepo := fakeuserrepo.NewFakeUserRepo()
	if err := bootstrap(c, clientRepo, scopeRepo, userRepo); err != nil {
		closeStorage()
		return nil, nil, err
	}

	inst, err := instrumentation.New(instrumentation.Config{
		MeterProvider:  otel.GetMeterProvider(),
		TracerProvider: otel.GetTracerProvider(),
	})
	if err != nil {
		closeStorage()
		return nil, nil, errors.Wrap(err, "[newHandler] instrumentation")
	}

	emitter := events.NewEmitter()
	emitter.AddCatchAllListener(events.LogListener(log.Logger))

	grantOpts := []grant.Option{
		grant.WithRefreshTokenTTL(c.GetRefreshTokenTTL()),
		grant.WithAuthCodeTTL(c.GetAuthCodeTTL()),
	}
	if c.GetRequirePKCE() {
		grantOpts = append(grantOpts, grant.WithRequireCodeChallengeForPublicClients())
	}
	if c.GetRequireState() {
		grantOpts = append(grantOpts, grant.WithRequireState())
	}

	accessTTL := c.GetAccessTokenTTL()
	authServer, err := auth.NewAuthorizationServer(auth.Config{
		Clients:      clientRepo,
		AccessTokens: tokens,
		Scopes:       scopeRepo,
		Signer:       keys.NewKeyPairSigner(keyPair),
		Encrypter:    encrypter,
	},
		auth.WithGrantType(grant.NewClientCredentialsGrant(grantOpts...), accessTTL),
		auth.WithGrantType(grant.NewAuthCodeGrant(tokens, tokens, grantOpts...), accessTTL),
		auth.WithGrantType(grant.NewRefreshTokenGrant(tokens, grantOpts...), accessTTL),
		auth.WithGrantType(grant.NewPasswordGrant(userRepo, tokens, grantOpts...), accessTTL),
		auth.WithGrantType(grant.NewImplicitGrant(grantOpts...), accessTTL),
		auth.WithScopeDelimiter(c.GetScopeDelimiter()),
		auth.WithDefaultScope(c.GetDefaultScope()),
		auth.WithEmitter(emitter),
		auth.WithLogger(log.Logger),
		auth.WithInstrumentation(inst),
	)
	if err != nil {
		closeStorage()
		return nil, nil, err
	}

	validator := resource.NewBearerTokenValidator(tokens, resource.NewPublicKeyVerifier(keyPair.PublicKey),
		resource.WithLogger(log.Logger),
		resource.WithInstrumentation(inst),
	)

	srv, err := server.New(c, server.Dependencies{
		Auth:      authServer,
		Validator: validator,
		Users:     userRepo,
		KeySet:    keyPair.JWKS(),
	})
	if err != nil {
		closeStorage()
		return nil, nil, err
	}
	return srv, closeStorage, nil
}

// loadKeyPair reads the signing key, or generates an ephemeral one when no
// path is configured. Tokens signed with an ephemeral key die with the process.
func loadKeyPair(c config.KeyConfig) (*keys.KeyPair, error) {
	path := c.GetPrivateKeyPath()
	if path == "" {
		log.Warn().Msg("no private key configured, generating an ephemeral RSA key")
		return keys.GenerateRSAKeyPair(c.GetKeyID(), 2048)
	}
	pemData, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "[loadKeyPair] read %s", path)
	}
	kp, err := keys.LoadKeyPairFromPEM(c.GetKeyID(), pemData, c.GetPrivateKeyPassphrase())
	if err != nil {
		return nil, errors.Wrapf(err, "[loadKeyPair] parse %s", path)
	}
	log.Info().Str("kid", kp.KeyID).Str("alg", kp.Algorithm).Msg("loaded signing key")
	return kp, nil
}

func newEncrypter(c config.KeyConfig) (crypt.Encrypter, error) {
	if encoded := c.GetEncryptionKey(); encoded != "" {
		key, err := crypt.ParseKey(encoded)
		if err != nil {
			return nil, errors.Wrap(err, "[newEncrypter] encryption key")
		}
		return crypt.NewKeyEncrypter(key)
	}
	if passphrase := c.GetEncryptionPassphrase(); passphrase != "" {
		return crypt.NewPassphraseEncrypter(passphrase, crypt.DefaultScryptParams)
	}

	log.Warn().Msg("no encryption key configured, refresh tokens will not survive a restart")
	key, err := crypt.GenerateKey()
	if err != nil {
		return nil, err
	}
	return crypt.NewKeyEncrypter(key)
}

func newTokenStore(ctx context.Context, c config.StorageConfig) (tokenStore, func(), error) {
	addrs := c.GetRedisAddrs()
	if len(addrs) == 0 {
		log.Info().Msg("using in-memory token storage")
		store := tokenfakerepo.NewFakeTokenRepo()
		cleanupCtx, cancel := context.WithCancel(ctx)
		go store.RunCleanup(cleanupCtx, memoryCleanupInterval)
		return store, cancel, nil
	}

	client, err := redisstore.NewClient(ctx, redisstore.ClientConfig{
		Addrs:    addrs,
		Password: c.GetRedisPassword(),
		DB:       c.GetRedisDB(),
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info().Strs("addrs", addrs).Msg("using redis token storage")

	closeClient := func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	return redisstore.New(client, redisstore.WithKeyPrefix(c.GetRedisKeyPrefix())), closeClient, nil
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server.ListenAndServe")
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
