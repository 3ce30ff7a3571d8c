// Command crm is a terminal client for the lead-management CRM API. It keeps
// a durable session on disk, so tokens survive between invocations and are
// refreshed transparently when a call hits an authorization failure.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-crm-client/api"
	"github.com/jrsteele09/go-crm-client/credentials/filestore"
	"github.com/jrsteele09/go-crm-client/internal/config"
	"github.com/jrsteele09/go-crm-client/internal/utils"
	"github.com/jrsteele09/go-crm-client/leads"
	"github.com/jrsteele09/go-crm-client/session"
	"github.com/jrsteele09/go-crm-client/users"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("crm")
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.New()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		displayAppname(cfg.GetAppName())
		usage()
		return nil
	}

	store, err := filestore.New(cfg.GetCredentialsDir())
	if err != nil {
		return err
	}

	svc, err := session.New(cfg, store, session.WithLogger(log.Logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
	defer cancel()

	command, rest := args[0], args[1:]
	if command == "login" || command == "register" {
		return authenticate(ctx, svc, command, rest)
	}

	// Every other command rides on the restored session.
	if err := svc.Initialize(ctx); err != nil {
		log.Debug().Err(err).Msg("session restore")
	}
	if svc.State() != session.StateAuthenticated {
		return errors.New("not logged in; run: crm login -email you@example.com -password ...")
	}

	switch command {
	case "logout":
		return svc.Logout()
	case "whoami":
		return printJSON(svc.User())
	case "update-profile":
		return updateProfile(ctx, svc, rest)
	case "leads":
		return leadsCommand(ctx, svc.API(), rest)
	case "activities":
		return activitiesCommand(ctx, svc.API(), rest)
	default:
		usage()
		return errors.Errorf("unknown command %q", command)
	}
}

func authenticate(ctx context.Context, svc *session.Service, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	firstName := fs.String("first-name", "", "first name (register only)")
	lastName := fs.String("last-name", "", "last name (register only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("-email and -password are required")
	}

	var (
		user *users.UserProfile
		err  error
	)
	if command == "register" {
		user, err = svc.Register(ctx, *email, *password, *firstName, *lastName)
	} else {
		user, err = svc.Login(ctx, *email, *password)
	}
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", user.Email)
	return nil
}

func updateProfile(ctx context.Context, svc *session.Service, args []string) error {
	fs := flag.NewFlagSet("update-profile", flag.ExitOnError)
	firstName := fs.String("first-name", "", "new first name")
	lastName := fs.String("last-name", "", "new last name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	update := users.ProfileUpdate{}
	if *firstName != "" {
		update.FirstName = utils.Ptr(*firstName)
	}
	if *lastName != "" {
		update.LastName = utils.Ptr(*lastName)
	}

	profile, err := svc.UpdateProfile(ctx, update)
	if err != nil {
		return err
	}
	return printJSON(profile)
}

func leadsCommand(ctx context.Context, client *api.Client, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("leads list", flag.ExitOnError)
		status := fs.String("status", "", "filter by pipeline status")
		search := fs.String("search", "", "search name/email")
		deleted := fs.Bool("deleted", false, "list soft-deleted leads")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		opts := api.ListLeadsOptions{Status: *status, Search: *search}
		if *deleted {
			opts.IsActive = utils.Ptr(false)
		}
		result, err := client.ListLeads(ctx, opts)
		if err != nil {
			return err
		}
		return printJSON(result)
	case "get":
		id, err := leadID(args)
		if err != nil {
			return err
		}
		lead, err := client.GetLead(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(lead)
	case "create":
		fs := flag.NewFlagSet("leads create", flag.ExitOnError)
		firstName := fs.String("first-name", "", "lead first name")
		lastName := fs.String("last-name", "", "lead last name")
		email := fs.String("email", "", "lead email")
		phone := fs.String("phone", "", "lead phone")
		source := fs.String("source", "", "lead source")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		lead, err := client.CreateLead(ctx, leads.NewLead{
			FirstName: *firstName,
			LastName:  *lastName,
			Email:     *email,
			Phone:     *phone,
			Source:    *source,
		})
		if err != nil {
			return err
		}
		return printJSON(lead)
	case "delete":
		id, err := leadID(args)
		if err != nil {
			return err
		}
		return client.DeleteLead(ctx, id)
	case "restore":
		id, err := leadID(args)
		if err != nil {
			return err
		}
		return client.RestoreLead(ctx, id)
	default:
		return errors.Errorf("unknown leads subcommand %q", args[0])
	}
}

func activitiesCommand(ctx context.Context, client *api.Client, args []string) error {
	if len(args) == 0 || args[0] == "recent" {
		result, err := client.RecentActivities(ctx)
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errors.Errorf("invalid lead id %q", args[0])
	}
	result, err := client.ListActivities(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func leadID(args []string) (int64, error) {
	if len(args) < 2 {
		return 0, errors.New("lead id required")
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid lead id %q", args[1])
	}
	return id, nil
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func usage() {
	fmt.Println(`usage: crm <command>

  login    -email ... -password ...
  register -email ... -password ... [-first-name ...] [-last-name ...]
  whoami
  update-profile [-first-name ...] [-last-name ...]
  logout
  leads    [list|get|create|delete|restore] ...
  activities [recent|<lead-id>]`)
}
