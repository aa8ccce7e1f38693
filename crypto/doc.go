// Package crypto implements the cryptographic core of the Opacus protocol:
// dual-key agent identities, Diffie-Hellman session keys, frame
// authentication, and replay protection.
//
// Identities pair an Ed25519 signing key with an X25519 key-exchange key.
// The agent identifier is derived from the signing public key alone, so
// restoring an identity from its two private keys always reproduces the
// same ID and address.
//
// Example:
//
//	identity, err := crypto.GenerateIdentity(16602)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Agent ID:", identity.ID)
//	fmt.Println("Address:", identity.Address)
package crypto
