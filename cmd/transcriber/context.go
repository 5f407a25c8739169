package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"transcriber/internal/api"
	"transcriber/internal/app"
	"transcriber/internal/config"
	"transcriber/internal/logging"
)

const (
	annotationSkipConfig = "skipConfigLoad"
	annotationRoute      = "route"
)

var errLoginRequired = errors.New("not logged in; run `transcriber login`")

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	appOnce sync.Once
	app     *app.App
	appErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureApp() (*app.App, error) {
	c.appOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.appErr = err
			return
		}
		verbose := c.verboseFlag != nil && *c.verboseFlag
		logger, err := logging.NewFromConfig(cfg, verbose)
		if err != nil {
			c.appErr = fmt.Errorf("init logging: %w", err)
			return
		}
		a, err := app.New(cfg, logger)
		if err != nil {
			c.appErr = err
			return
		}
		c.app = a
	})
	return c.app, c.appErr
}

// guard sends commands annotated with a route through the router. A redirect
// to login means the user must sign in first.
func (c *commandContext) guard(cmd *cobra.Command) error {
	route := commandRoute(cmd)
	if route == "" {
		return nil
	}
	a, err := c.ensureApp()
	if err != nil {
		return err
	}
	if err := a.Router.Navigate(route); err != nil {
		return err
	}
	if a.Router.Current() != route {
		return errLoginRequired
	}
	return nil
}

// apiError converts backend failures into user-facing errors. A 401 signs the
// session out.
func (c *commandContext) apiError(err error) error {
	if err == nil {
		return nil
	}
	if c.app != nil && c.app.HandleUnauthorized(err) {
		return fmt.Errorf("session rejected by backend; run `transcriber login`: %w", err)
	}
	if api.IsUnreachable(err) {
		backend := ""
		if c.config != nil {
			backend = c.config.Backend.URL
		}
		return fmt.Errorf("backend %s unreachable; check backend.url: %w", backend, err)
	}
	return err
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func commandRoute(cmd *cobra.Command) string {
	for cur := cmd; cur != nil; cur = cur.Parent() {
		if route := cur.Annotations[annotationRoute]; route != "" {
			return route
		}
	}
	return ""
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations[annotationSkipConfig] == "true" {
			return true
		}
	}
	return false
}

func routeAnnotation(route string) map[string]string {
	return map[string]string{annotationRoute: route}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
