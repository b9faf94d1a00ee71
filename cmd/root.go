package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wundergraph/graphiql-fetcher/pkg/wschannel"
)

const (
	configKeyEndpoint             = "endpoint"
	configKeySubscriptionEndpoint = "subscription_endpoint"
	configKeySubProtocol          = "subprotocol"
	configKeyHeaders              = "headers"
	configKeyTimeout              = "timeout"
	configKeyLogLevel             = "log_level"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "graphiql-fetcher",
	Short: "graphiql-fetcher runs GraphQL operations the way the GraphiQL IDE does",
	Long: `graphiql-fetcher sends queries and mutations as HTTP POST and runs subscriptions over a shared websocket
(graphql-transport-ws or graphql-ws). It also locates the operation or fragment enclosing a position in a document.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.graphiql-fetcher.yaml)")
	rootCmd.PersistentFlags().String("endpoint", "http://localhost:8080/graphql", "GraphQL endpoint for queries and mutations")
	rootCmd.PersistentFlags().String("subscription-endpoint", "", "websocket endpoint for subscriptions (defaults to endpoint)")
	rootCmd.PersistentFlags().String("subprotocol", wschannel.ProtocolGraphQLTWS, "websocket sub-protocol: graphql-transport-ws or graphql-ws")
	rootCmd.PersistentFlags().StringToString("header", nil, "headers sent with every request, e.g. --header Authorization=token")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "timeout of HTTP requests and of the websocket handshake")
	rootCmd.PersistentFlags().String("log-level", "error", "debug, info, warn or error")

	_ = viper.BindPFlag(configKeyEndpoint, rootCmd.PersistentFlags().Lookup("endpoint"))
	_ = viper.BindPFlag(configKeySubscriptionEndpoint, rootCmd.PersistentFlags().Lookup("subscription-endpoint"))
	_ = viper.BindPFlag(configKeySubProtocol, rootCmd.PersistentFlags().Lookup("subprotocol"))
	_ = viper.BindPFlag(configKeyHeaders, rootCmd.PersistentFlags().Lookup("header"))
	_ = viper.BindPFlag(configKeyTimeout, rootCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag(configKeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".graphiql-fetcher")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GRAPHIQL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

type config struct {
	endpoint             string
	subscriptionEndpoint string
	subProtocol          string
	header               http.Header
	timeout              time.Duration
	logLevel             string
}

func loadConfig() config {
	c := config{
		endpoint:             viper.GetString(configKeyEndpoint),
		subscriptionEndpoint: viper.GetString(configKeySubscriptionEndpoint),
		subProtocol:          viper.GetString(configKeySubProtocol),
		header:               http.Header{},
		timeout:              viper.GetDuration(configKeyTimeout),
		logLevel:             viper.GetString(configKeyLogLevel),
	}
	if c.subscriptionEndpoint == "" {
		c.subscriptionEndpoint = c.endpoint
	}
	for key, value := range viper.GetStringMapString(configKeyHeaders) {
		c.header.Set(key, value)
	}
	return c
}
