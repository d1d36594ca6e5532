/*
Use either as

	$ echo -broker

or

	$ echo -worker

or

	$ echo -client
*/
package main

import (
	"flag"
	"fmt"

	"github.com/zbroker/majordomo/broker"
	"github.com/zbroker/majordomo/client"
	mdlog "github.com/zbroker/majordomo/log"
	"github.com/zbroker/majordomo/worker"
)

const brokerAddr = "tcp://127.0.0.1:47047"

func runBroker() {
	transport, err := broker.NewRouterTransport()

	if err != nil {
		fmt.Println(err.Error())
		return
	}

	b := broker.NewBroker("tcp://*:47047", transport)
	b.SetLogDetails(true)
	defer b.Close()

	if err := b.Serve(); err != nil {
		fmt.Println(err.Error())
	}
}

func echoHandler(body []byte) ([]byte, error) {
	fmt.Println("Called echoHandler:", string(body), len(body))
	return body, nil
}

func runWorker() {
	w := worker.New(brokerAddr, "echo", echoHandler)

	if err := w.Run(); err != nil {
		fmt.Println(err.Error())
	}
}

func runClient() {
	cl, err := client.New(brokerAddr)

	if err != nil {
		fmt.Println(err.Error())
		return
	}
	defer cl.Close()

	resp, err := cl.Request("echo", []byte("helloworld"))

	if err != nil {
		fmt.Println(err.Error())
		return
	}

	fmt.Println("Received response:", string(resp), len(resp))
}

func main() {
	var brk, wrk, cl bool
	flag.BoolVar(&brk, "broker", false, "Specify if you want us to run as the broker")
	flag.BoolVar(&wrk, "worker", false, "Specify if you want us to run as an echo worker")
	flag.BoolVar(&cl, "client", false, "Specify if you want us to send one echo request")

	flag.Parse()

	mdlog.SetLoglevel(mdlog.LOGLEVEL_DEBUG)

	switch {
	case brk:
		runBroker()
	case wrk:
		runWorker()
	case cl:
		runClient()
	default:
		flag.Usage()
	}
}
