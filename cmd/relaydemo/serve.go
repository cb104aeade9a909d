package main

import (
	"log"
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/spf13/cobra"

	"relayrpc/backlog"
	"relayrpc/rpc"
	"relayrpc/server"
)

func newServeCommand() *cobra.Command {
	var configPath string
	var useEtcd bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo's Server Engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDemoConfig(configPath)
			if err != nil {
				return err
			}

			var bl backlog.Backlog = backlog.NewMemoryBacklog()
			if useEtcd {
				eb, err := backlog.NewEtcdBacklog(cfg.EtcdEndpoints)
				if err != nil {
					return err
				}
				bl = eb
			}

			engine := server.NewEngine(rpc.RpcServerConfig{}, headerAuthenticator, serverHandlers(), bl)
			push, pull := engine.Handler()

			mux := pat.New()
			mux.Post("/push", push)
			mux.Post("/pull", pull)

			log.Printf("relaydemo: server listening on %s", cfg.ListenAddr)
			return http.ListenAndServe(cfg.ListenAddr, mux)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a relaydemo config file")
	cmd.Flags().BoolVar(&useEtcd, "backlog-etcd", false, "store the retry backlog in etcd instead of memory")
	return cmd
}

// headerAuthenticator resolves a client ID from the X-Client-Id header.
// Real deployments would verify a signed token here; this demo only needs
// to distinguish one client's Peer Cache from another's.
func headerAuthenticator(r *http.Request) (string, bool) {
	id := r.Header.Get("X-Client-Id")
	if id == "" {
		return "", false
	}
	return id, true
}
