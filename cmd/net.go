// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64

package cmd

import (
	"errors"
	"fmt"
	"log"
	"net"
	"regexp"
	"sync"

	"github.com/gliderlabs/ssh"
	"github.com/usbarmory/go-net"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi"
)

// Resolver represents the default name server
var Resolver = "8.8.8.8:53"

// SSHAddress represents the listening address of the SSH console
var SSHAddress = ":22"

// netHooks are invoked once networking is initialized
var netHooks []func()

// nic is the network device backing the network stack
var nic *networkDevice

// networkDevice exposes a Simple Network Protocol capability to the network
// stack, packets are dropped once the capability is released.
type networkDevice struct {
	sync.Mutex
	*uefi.SimpleNetwork

	c *uefi.Capability[uefi.SimpleNetwork]
}

func (d *networkDevice) Transmit(buf []byte) error {
	d.Lock()
	defer d.Unlock()

	if !d.c.Valid() {
		return uefi.ErrUnsupported
	}

	return d.SimpleNetwork.Transmit(buf)
}

func (d *networkDevice) Receive(buf []byte) (int, error) {
	d.Lock()
	defer d.Unlock()

	if !d.c.Valid() {
		return 0, uefi.ErrUnsupported
	}

	return d.SimpleNetwork.Receive(buf)
}

// Close stops the interface and closes its capability, it must be invoked
// before exiting EFI Boot Services.
func (d *networkDevice) Close() (err error) {
	d.Lock()
	defer d.Unlock()

	if !d.c.Valid() {
		return
	}

	if err = d.SimpleNetwork.Stop(); err != nil {
		log.Printf("could not stop network interface, %v", err)
	}

	return d.c.Close()
}

func init() {
	shell.Add(shell.Cmd{
		Name:    "net",
		Args:    2,
		Pattern: regexp.MustCompile(`^net (\S+) (\S+)$`),
		Syntax:  "<ip> <gateway>",
		Help:    "start UEFI networking",
		Fn:      netCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "dns",
		Args:    1,
		Pattern: regexp.MustCompile(`^dns (.*)`),
		Syntax:  "<host>",
		Help:    "resolve domain",
		Fn:      dnsCmd,
	})

	shell.Add(shell.Cmd{
		Name: "sshd",
		Help: "start SSH console (requires net)",
		Fn:   sshdCmd,
	})

	net.SetDefaultNS([]string{Resolver})
}

func netCmd(iface *shell.Interface, arg []string) (res string, err error) {
	var bs *uefi.BootServices

	if nic != nil {
		return "", errors.New("network already initialized")
	}

	if bs, err = bootServices(iface); err != nil {
		return
	}

	handles, err := bs.LocateHandle(uefi.EFI_SIMPLE_NETWORK_PROTOCOL_GUID)

	if err != nil || len(handles) == 0 {
		return "", fmt.Errorf("could not locate network protocol, %v", err)
	}

	// the capability is tracked, exiting EFI Boot Services is refused
	// until it is closed
	c, err := uefi.OpenProtocol[uefi.SimpleNetwork](bs, handles[0], uefi.EFI_OPEN_PROTOCOL_GET_PROTOCOL)

	if err != nil {
		return "", fmt.Errorf("could not open network protocol, %v", err)
	}

	dev := &networkDevice{
		SimpleNetwork: c.Protocol(),
		c:             c,
	}

	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if err = dev.Start(); err != nil && !errors.Is(err, uefi.ErrAlreadyStarted) {
		return "", fmt.Errorf("could not start interface, %v", err)
	}

	if err = dev.Initialize(); err != nil {
		return "", fmt.Errorf("could not initialize interface, %v", err)
	}

	stack := gnet.Interface{}

	if err = stack.Init(dev, arg[0], "", arg[1]); err != nil {
		return "", fmt.Errorf("could not initialize networking, %v", err)
	}

	stack.EnableICMP()
	go stack.NIC.Start()

	// hook interface into Go runtime
	net.SocketFunc = stack.Socket

	nic = dev
	exitHooks = append(exitHooks, nic.Close)

	for _, hook := range netHooks {
		hook()
	}

	return "network initialized", nil
}

func dnsCmd(_ *shell.Interface, arg []string) (res string, err error) {
	cname, err := net.LookupHost(arg[0])

	if err != nil {
		return "", fmt.Errorf("query error: %v", err)
	}

	return fmt.Sprintf("%+v", cname), nil
}

func sshdCmd(iface *shell.Interface, _ []string) (res string, err error) {
	if nic == nil {
		return "", errors.New("network not initialized, use `net`")
	}

	srv := &ssh.Server{
		Addr: SSHAddress,
		Handler: func(s ssh.Session) {
			console := &shell.Interface{
				Banner:     iface.Banner,
				Log:        iface.Log,
				ReadWriter: s,
				UEFI:       iface.UEFI,
				VT100:      true,
			}

			log.Printf("ssh session from %s", s.RemoteAddr())
			console.Start()
		},
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("ssh server error, %v", err)
		}
	}()

	return fmt.Sprintf("starting ssh server at %s", SSHAddress), nil
}
