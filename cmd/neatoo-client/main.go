// Command neatoo-client is a manual-testing convenience that drives a
// neatooclient.Proxy against the demo Person type, per SPEC_FULL §4.16.
//
// Grounded on packages/apisix-go-runner/cmd/go-runner/main.go's
// root-command-plus-subcommands cobra shape.
package main

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/arc-self/neatoo/config"
	"github.com/arc-self/neatoo/neatooclient"
	"github.com/arc-self/neatoo/registry"
	"github.com/arc-self/neatoo/store"
)

func newRegistry() *registry.Registry {
	reg := registry.New()
	if err := store.RegisterPerson(reg, "acme.Person"); err != nil {
		panic(err)
	}
	return reg
}

func newProxy(cfg config.ClientConfig) *neatooclient.Proxy {
	opts := []neatooclient.Option{}
	if cfg.AuthToken != "" {
		opts = append(opts, neatooclient.WithAuthToken(cfg.AuthToken))
	}
	return neatooclient.New(cfg.ServerURL, newRegistry(), opts...)
}

func newFetchCommand() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a Person by ID through the remote-factory dispatch endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadClientConfig()
			proxy := newProxy(cfg)

			result, err := proxy.Call(context.Background(), "Person.Fetch#1",
				[]reflect.Type{reflect.TypeOf(int64(0))}, []any{id},
				reflect.TypeOf(&store.Person{}))
			if err != nil {
				return err
			}
			p := result.(*store.Person)
			fmt.Printf("Person{ID: %d, Active: %t, Age: %d, Name: %q}\n", p.ID, p.Active, p.Age, p.Name)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Person ID to fetch")
	return cmd
}

func newSaveCommand() *cobra.Command {
	var name string
	var age int
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Insert a new Person through the remote-factory dispatch endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadClientConfig()
			proxy := newProxy(cfg)

			p := store.NewPerson(name, age)
			result, err := proxy.Call(context.Background(), "Person.Insert#1",
				[]reflect.Type{reflect.TypeOf(&store.Person{})}, []any{p},
				reflect.TypeOf(&store.Person{}))
			if err != nil {
				return err
			}
			saved := result.(*store.Person)
			fmt.Printf("saved Person{ID: %d, Name: %q}\n", saved.ID, saved.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Person name")
	cmd.Flags().IntVar(&age, "age", 0, "Person age")
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:  "neatoo-client [command]",
		Long: "Manual-testing CLI for the neatoo remote-factory runtime",
	}
	root.AddCommand(newFetchCommand())
	root.AddCommand(newSaveCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
