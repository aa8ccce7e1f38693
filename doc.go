// Package opacus implements the Opacus agent-to-agent messaging fabric.
//
// Agents hold a dual cryptographic identity (an Ed25519 signing key and
// an X25519 key-exchange key) and exchange authenticated frames through a
// central relay over QUIC datagrams. The relay routes frames by agent ID
// and stores traffic for offline recipients; authenticity is verified end
// to end by the receiving agent, never by the relay.
//
// Example:
//
//	client := opacus.NewClient(opacus.DefaultConfig(opacus.NetworkTestnet))
//
//	identity, err := client.Init()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Agent ID:", identity.ID)
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// The first Ack from the relay carries its key-exchange public key.
//	frame, err := client.Recv(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := client.SendMessage("0f3c...", []byte("hello")); err != nil {
//	    log.Fatal(err)
//	}
package opacus
