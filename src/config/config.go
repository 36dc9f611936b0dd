package config

type config struct {
	// Lower bound for randomized election timeout in milliseconds
	ElectionTimeoutMin int
	// Upper bound for randomized election timeout in milliseconds
	ElectionTimeoutMax int
	// Leader heartbeat interval in milliseconds
	HeartbeatInterval int
	// Leader's bounded wait on the transport in milliseconds
	LeaderReceiveWait int
	// Max number of log entries carried by a single AppendEntry
	AppendBatchLimit int
	// Simulated network latency in milliseconds (playground only)
	NetworkLatency int
	// Reserved id meaning broadcast / "no known leader"
	BroadcastId string
	// Ids of all replicas in the cluster, including the local one
	ReplicaIds []string
}

var Config = config{}

// Defaults restores the protocol constants. ReplicaIds is left to the caller.
func Defaults() {
	Config.ElectionTimeoutMin = 300
	Config.ElectionTimeoutMax = 500
	Config.HeartbeatInterval = 100
	Config.LeaderReceiveWait = 100
	Config.AppendBatchLimit = 80
	Config.BroadcastId = "FFFF"
}

// QuorumSize returns the strict majority of the configured cluster.
func QuorumSize() int {
	return len(Config.ReplicaIds)/2 + 1
}
