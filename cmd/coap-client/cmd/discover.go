package cmd

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/backkem/coap/cmd/coap-client/output"
	"github.com/backkem/coap/pkg/discovery"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var secure bool

	cmd := &cobra.Command{
		Use:   "discover [instance]",
		Short: "Browse the local link for CoAP services over mDNS",
		Long: `discover lists _coap._udp services announced through DNS-SD. With an
instance name it resolves only that service.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serviceType := discovery.ServiceTypeCoAP
			if secure {
				serviceType = discovery.ServiceTypeCoAPSecure
			}

			resolver, err := discovery.NewResolver(discovery.ResolverConfig{
				MDNSResolver:  mdnsResolver,
				BrowseTimeout: a.cfg.BrowseTimeout,
				LookupTimeout: a.cfg.BrowseTimeout,
				LoggerFactory: a.logger,
			})
			if err != nil {
				return err
			}

			return a.run(cmd.Context(), func(ctx context.Context) error {
				if len(args) == 1 {
					svc, err := resolver.Lookup(ctx, serviceType, args[0])
					if err != nil {
						return err
					}
					a.print(cmd, output.NewService(*svc))
					return nil
				}

				found, err := resolver.Browse(ctx, serviceType)
				if err != nil {
					return err
				}
				services := []output.Service{}
				for svc := range found {
					services = append(services, output.NewService(svc))
				}
				sort.Slice(services, func(i, j int) bool {
					return services[i].Instance < services[j].Instance
				})
				a.print(cmd, services)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&secure, "secure", false, "browse _coaps._udp instead")
	cmd.Flags().DurationVar(&a.cfg.BrowseTimeout, "browse-timeout", a.cfg.BrowseTimeout, "how long to collect announcements")
	return cmd
}
