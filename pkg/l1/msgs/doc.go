// Package msgs defines the messages a gateway exchanges over the network.
package msgs

// Messages are encoded as protobuf and carry XBee frames between the
// gateway attached to the radio and remote applications.
//
// Producer: gateway (RxPacket, TxStatus), applications (TxRequest)
// Consumer: applications (RxPacket, TxStatus), gateway (TxRequest)
