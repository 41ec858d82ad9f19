// coap-client sends CoAP requests and observes resources from the command
// line.
//
// Usage:
//
//	coap-client [command] [flags]
//
// Commands:
//
//	get      <uri>   GET a resource
//	post     <uri>   POST --data to a resource
//	put      <uri>   PUT --data to a resource
//	delete   <uri>   DELETE a resource
//	observe  <uri>   Register for notifications until interrupted
//	discover         Browse the local link for _coap._udp services
//
// Every flag has a COAP_* environment variable (see Config); a .env file in
// the working directory is loaded first.
//
// Example:
//
//	coap-client get coap://[fe80::1%25eth0]/sensors/temp -o json
//	coap-client observe coap://192.168.1.7/light --count 5
package main

import (
	"os"

	"github.com/backkem/coap/cmd/coap-client/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
